package mysql

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	AnalysisTask       *AnalysisTaskRepository
	AnalysisTaskEvent  *AnalysisTaskEventRepository
	State              *StateRepository
	RiskSummary        *RiskSummaryRepository
	LogAnalysis        *LogAnalysisRepository
	DeploymentAnalysis *DeploymentAnalysisRepository
	Anomaly            *AnomalyRepository
	Heatmap            *HeatmapRepository
	Verification       *VerificationRepository
}

// NewRepository creates a new MySQL repository with all sub-repositories
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}
	return NewRepositoryWithDatastore(ds), nil
}

// NewRepositoryWithDatastore wires every sub-repository onto ds
func NewRepositoryWithDatastore(ds *Datastore) *Repository {
	return &Repository{
		ds:                 ds,
		AnalysisTask:       NewAnalysisTaskRepository(ds),
		AnalysisTaskEvent:  NewAnalysisTaskEventRepository(ds),
		State:              NewStateRepository(ds),
		RiskSummary:        NewRiskSummaryRepository(ds),
		LogAnalysis:        NewLogAnalysisRepository(ds),
		DeploymentAnalysis: NewDeploymentAnalysisRepository(ds),
		Anomaly:            NewAnomalyRepository(ds),
		Heatmap:            NewHeatmapRepository(ds),
		Verification:       NewVerificationRepository(ds),
	}
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
