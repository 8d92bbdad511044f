package controller

import (
	"context"
	"errors"

	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

// RequestFullRefresh queries the device for every field the model reports.
// Power is asked first; the main and zone 2 blocks are only queried while
// that zone is on, since the device rejects most queries in standby. Replies
// reach the cache through the normal update path. Per-field failures are
// collected and returned together; a closed session stops the refresh.
func (s *Session) RequestFullRefresh(ctx context.Context) error {
	var errs []error
	ask := func(f models.Field) (models.Value, bool) {
		v, err := s.Query(ctx, f)
		if err != nil {
			errs = append(errs, err)
			return nil, false
		}
		return v, true
	}
	stop := func() bool {
		return ctx.Err() != nil || s.Err() != nil
	}

	for _, f := range []models.Field{models.FieldDeviceName, models.FieldInterface, models.FieldVerbosity} {
		if stop() {
			break
		}
		ask(f)
	}

	if !stop() {
		if on, ok := ask(models.FieldPower); ok && on == true {
			for _, f := range protocol.MainFields(s.profile) {
				if stop() {
					break
				}
				ask(f)
			}
		}
	}

	if !stop() {
		if on, ok := ask(models.FieldZone2Power); ok && on == true {
			for _, f := range protocol.Zone2Fields() {
				if stop() {
					break
				}
				ask(f)
			}
		}
	}

	if err := s.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Debug("controller: refresh complete", "revision", s.Snapshot().Revision, "failures", len(errs))
	return errors.Join(errs...)
}
