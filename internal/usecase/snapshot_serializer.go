package usecase

import (
	"context"
	"fmt"

	drepo "CandleHist/internal/domain/repository"
	"CandleHist/pkg/logger"
)

// SnapshotSerializer moves component state in and out of the snapshot
// repository so in-memory queues and caches survive restarts.
type SnapshotSerializer struct {
	repo drepo.SnapshotRepository
	l    *logger.Logger
}

func NewSnapshotSerializer(repo drepo.SnapshotRepository, l *logger.Logger) *SnapshotSerializer {
	return &SnapshotSerializer{repo: repo, l: l}
}

// Serialize captures and stores the component's current state.
func (s *SnapshotSerializer) Serialize(ctx context.Context, component string, holder drepo.StateHolder) error {
	state := holder.GetState()
	s.l.Info("saving snapshot",
		logger.String("component", component),
		logger.String("state", holder.DescribeState(state)))

	if err := s.repo.Save(ctx, component, state); err != nil {
		return fmt.Errorf("serialize %s: %w", component, err)
	}
	return nil
}

// Deserialize restores the component's state from its snapshot. Missing
// snapshots are not an error; the component starts empty.
func (s *SnapshotSerializer) Deserialize(ctx context.Context, component string, holder drepo.StateHolder) error {
	state, ok, err := s.repo.TryGet(ctx, component)
	if err != nil {
		return fmt.Errorf("deserialize %s: %w", component, err)
	}
	if !ok {
		s.l.Warn("no snapshot to restore", logger.String("component", component))
		return nil
	}

	s.l.Info("restoring snapshot",
		logger.String("component", component),
		logger.String("state", holder.DescribeState(state)))
	holder.SetState(state)
	return nil
}
