package hybrid

import (
	"context"
	"slices"
	"time"

	"github.com/fishy/errbatch"

	"github.com/fishy/docsync"
)

// Upload uploads the pending changes of the local collection to the remote
// collection, see package doc for the process.
//
// A single failure is returned as is. When there are more, for example
// several documents rejected with "403 Forbidden", the returned error is an
// *UploadError, which docsync.IsForbidden and docsync.StatusOf see through.
//
// Upload with nothing pending succeeds without contacting the remote
// collection.
func (c *Collection) Upload(ctx context.Context) error {
	started := time.Now()
	var forbidden errbatch.ErrBatch
	upserts, removes, err := c.upload(ctx, &forbidden)
	if err != nil {
		return uploadResult(err, &forbidden)
	}

	if logger := c.opts.GetLogger(); logger != nil && upserts+removes > 0 {
		logger.InfoContext(
			ctx,
			"upload finished",
			"collection", c.Name(),
			"upserts", upserts,
			"removes", removes,
			"forbidden", len(forbidden.GetErrors()),
			"took", time.Since(started),
		)
	}
	return uploadResult(nil, &forbidden)
}

// upload uploads everything pending, adding 403 errors into forbidden.
//
// It returns the number of upserts and removes it went through,
// and the error that stopped it, if any.
func (c *Collection) upload(ctx context.Context, forbidden *errbatch.ErrBatch) (int, int, error) {
	upserts, err := c.local.PendingUpserts(ctx)
	if err != nil {
		return 0, 0, err
	}
	if sort := c.opts.GetUploadSort(); sort != nil {
		slices.SortStableFunc(upserts, sort)
	}
	for _, u := range upserts {
		select {
		default:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}

		if err := c.uploadUpsert(ctx, u); err != nil {
			if !docsync.IsForbidden(err) {
				return 0, 0, err
			}
			forbidden.Add(err)
		}
	}

	removes, err := c.local.PendingRemoves(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range removes {
		select {
		default:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}

		if err := c.uploadRemove(ctx, id); err != nil {
			if !docsync.IsForbidden(err) {
				return 0, 0, err
			}
			forbidden.Add(err)
		}
	}
	return len(upserts), len(removes), nil
}

// uploadUpsert uploads one pending upsert.
//
// A non-nil returned error means the upsert was not uploaded.
// For 403 errors the document has been dropped locally.
func (c *Collection) uploadUpsert(ctx context.Context, u docsync.Upsert) error {
	id := u.Doc.ID()
	docs, err := c.remote.Upsert(
		ctx,
		[]docsync.Document{u.Doc},
		[]docsync.Document{u.Base},
	)
	if err != nil {
		if !docsync.IsGone(err) && !docsync.IsForbidden(err) {
			return err
		}
		c.logDebug(ctx, "document rejected by remote", "id", id, "err", err)
		if cleanupErr := c.drop(ctx, id); cleanupErr != nil {
			return cleanupErr
		}
		if docsync.IsGone(err) {
			return nil
		}
		return err
	}

	if err := c.local.ResolveUpserts(ctx, []docsync.Upsert{u}); err != nil {
		return err
	}
	if len(docs) > 0 && docs[0] != nil {
		return c.local.CacheOne(ctx, docs[0])
	}
	// Deleted on the remote side.
	return c.drop(ctx, id)
}

// uploadRemove uploads one pending remove.
func (c *Collection) uploadRemove(ctx context.Context, id string) error {
	err := c.remote.Remove(ctx, id)
	if err != nil && !docsync.IsGone(err) && !docsync.IsForbidden(err) {
		return err
	}
	if resolveErr := c.local.ResolveRemove(ctx, id); resolveErr != nil {
		return resolveErr
	}
	if docsync.IsForbidden(err) {
		return err
	}
	return nil
}

// drop removes a document locally and resolves the removal,
// so it's never uploaded.
func (c *Collection) drop(ctx context.Context, id string) error {
	if err := c.local.Remove(ctx, id); err != nil {
		return err
	}
	return c.local.ResolveRemove(ctx, id)
}
