package mcp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/pkg/types"
)

// BackendStatus is the outcome of probing one configured backend
type BackendStatus struct {
	Backend string `json:"backend"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail"`
}

// Check tests the configured storage backends: the vector collection and
// the keyword table with its server version. The embedding and chat
// services are not called.
func (s *Server) Check(ctx context.Context) []BackendStatus {
	var statuses []BackendStatus

	if s.vector != nil {
		status := BackendStatus{Backend: types.BackendVector}
		exists, err := s.vector.CollectionExists(ctx)
		switch {
		case err != nil:
			status.Detail = err.Error()
		case !exists:
			status.Detail = "collection not found"
		default:
			status.OK = true
			status.Detail = "collection found"
		}
		statuses = append(statuses, status)
	}

	if s.store != nil {
		status := BackendStatus{Backend: types.BackendKeyword}
		version, err := s.store.ServerVersion(ctx)
		if err != nil {
			status.Detail = err.Error()
			statuses = append(statuses, status)
		} else {
			exists, err := s.store.TableExists(ctx)
			switch {
			case err != nil:
				status.Detail = err.Error()
			case !exists:
				status.Detail = (&types.BackendNotFoundError{Database: s.store.Database(), Table: s.store.Table()}).Error()
			default:
				status.OK = true
				status.Detail = fmt.Sprintf("%s %s, table %s", s.store.Dialect(), version, s.store.Table())
			}
			statuses = append(statuses, status)
		}
	}

	for _, st := range statuses {
		s.logger.Info("backend check",
			zap.String("backend", st.Backend),
			zap.Bool("ok", st.OK),
			zap.String("detail", st.Detail))
	}
	return statuses
}
