package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
	"stratforge/ports"
)

// TestKit bundles in-memory adapters for driver tests and offline demos
type TestKit struct {
	Checkpoints *InMemoryCheckpointStore
	Runs        *InMemoryRunRepository
}

// NewTestKit creates a test kit with fresh in-memory stores
func NewTestKit() *TestKit {
	return &TestKit{
		Checkpoints: NewInMemoryCheckpointStore(),
		Runs:        NewInMemoryRunRepository(),
	}
}

// InMemoryCheckpointStore implements CheckpointStore in memory, keyed the
// same way the Postgres adapter keys its table: (run, stage).
type InMemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[core.RunID]map[run.StageName]run.Checkpoint
	SaveErr     error // when set, Save fails with this error
	saves       int
}

// NewInMemoryCheckpointStore creates an empty in-memory checkpoint store
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{
		checkpoints: make(map[core.RunID]map[run.StageName]run.Checkpoint),
	}
}

// Save idempotently overwrites the (run, stage) key
func (s *InMemoryCheckpointStore) Save(_ context.Context, cp run.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.checkpoints[cp.RunID] == nil {
		s.checkpoints[cp.RunID] = make(map[run.StageName]run.Checkpoint)
	}
	s.checkpoints[cp.RunID][cp.Stage] = cp
	s.saves++
	return nil
}

// LoadLatest returns the checkpoint with the highest stage index
func (s *InMemoryCheckpointStore) LoadLatest(_ context.Context, runID core.RunID) (*run.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stages := s.checkpoints[runID]
	if len(stages) == 0 {
		return nil, core.ErrCheckpointNotFound
	}

	var all []run.Checkpoint
	for _, cp := range stages {
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StageIndex > all[j].StageIndex })

	latest := all[0]
	return &latest, nil
}

// Resume returns the cursor of the first incomplete stage and the carried
// artifact set.
func (s *InMemoryCheckpointStore) Resume(ctx context.Context, runID core.RunID) (int, []*strategy.Artifact, error) {
	cp, err := s.LoadLatest(ctx, runID)
	if err != nil {
		return 0, nil, err
	}
	if cp.Status == run.StatusCompleted {
		return 0, nil, core.ErrRunNotResumable
	}
	return cp.ResumeCursor(), cp.Artifacts, nil
}

// SaveCount reports how many saves succeeded
func (s *InMemoryCheckpointStore) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// InMemoryRunRepository implements RunRepository in memory
type InMemoryRunRepository struct {
	mu        sync.RWMutex
	summaries map[core.RunID]run.Summary
}

// NewInMemoryRunRepository creates an empty in-memory run repository
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{summaries: make(map[core.RunID]run.Summary)}
}

func (r *InMemoryRunRepository) SaveSummary(_ context.Context, summary run.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.RunID] = summary
	return nil
}

func (r *InMemoryRunRepository) GetSummary(_ context.Context, runID core.RunID) (*run.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary, ok := r.summaries[runID]
	if !ok {
		return nil, core.NewNotFoundError("run summary", string(runID))
	}
	return &summary, nil
}

func (r *InMemoryRunRepository) ListSummaries(_ context.Context, limit int) ([]run.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []run.Summary
	for _, s := range r.summaries {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CompletedAt.After(all[j].CompletedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ScriptedGenerator returns pre-built artifacts per slot and records every
// regeneration request it receives. Tests script exactly the candidates a
// scenario needs.
type ScriptedGenerator struct {
	mu        sync.Mutex
	Artifacts []*strategy.Artifact
	// RegenerateFn overrides regeneration behavior when set; the default
	// echoes the frozen structural fields with a revised narrative.
	RegenerateFn  func(req ports.RegenerationRequest) (*strategy.Artifact, error)
	GenerateErrs  map[int]error // per-slot generation failures
	RegenRequests []ports.RegenerationRequest
	GenerateCalls int
}

// Generate returns the scripted artifact for the slot
func (g *ScriptedGenerator) Generate(_ context.Context, req ports.StageContext) (*ports.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GenerateCalls++

	if err, ok := g.GenerateErrs[req.Slot]; ok {
		return nil, err
	}
	if req.Slot >= len(g.Artifacts) {
		return nil, fmt.Errorf("no scripted artifact for slot %d", req.Slot)
	}
	return &ports.GenerationResult{
		Artifact: g.Artifacts[req.Slot],
		Audit:    ports.GenerationAudit{GeneratorType: "scripted"},
	}, nil
}

// Regenerate records the request and applies the scripted behavior
func (g *ScriptedGenerator) Regenerate(_ context.Context, req ports.RegenerationRequest) (*ports.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RegenRequests = append(g.RegenRequests, req)

	if g.RegenerateFn != nil {
		artifact, err := g.RegenerateFn(req)
		if err != nil {
			return nil, err
		}
		return &ports.GenerationResult{
			Artifact: artifact,
			Audit:    ports.GenerationAudit{GeneratorType: "scripted"},
		}, nil
	}

	revised := *req.Original
	revised.Archetype = req.Frozen.Archetype
	revised.Assets = append([]string(nil), req.Frozen.Assets...)
	revised.Weights = cloneWeights(req.Frozen.Weights)
	revised.Rebalance = req.Frozen.Rebalance
	revised.Tree = req.Frozen.Tree.Clone()
	revised.Thesis = req.Original.Thesis + " Target allocation drift is capped at 5%."
	revised.Expectation = "Expect 8% annualized return with 12% volatility."
	return &ports.GenerationResult{
		Artifact: &revised,
		Audit:    ports.GenerationAudit{GeneratorType: "scripted"},
	}, nil
}

func cloneWeights(w map[string]float64) map[string]float64 {
	if w == nil {
		return nil
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// StaticContextProvider returns a fixed market context
type StaticContextProvider struct {
	Context *ports.MarketContext
}

func (p *StaticContextProvider) Snapshot(_ context.Context) (*ports.MarketContext, error) {
	return p.Context, nil
}

// AcceptAllDeployer accepts every deployment
type AcceptAllDeployer struct {
	mu       sync.Mutex
	Deployed []*strategy.Artifact
	Err      error // when set, Deploy fails with this error
}

func (d *AcceptAllDeployer) Deploy(_ context.Context, artifact *strategy.Artifact) (*ports.DeploymentResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	d.Deployed = append(d.Deployed, artifact)
	return &ports.DeploymentResult{
		PlatformID: "platform-" + string(artifact.ID),
		DeployedAt: core.Now(),
	}, nil
}
