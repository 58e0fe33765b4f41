package pipeline

import (
	"errors"

	"rag-pipeline-console/pkg/projection"
)

var (
	ErrStageRunning          = errors.New("stage is already running")
	ErrStageNotIdle          = errors.New("stage must be reset before it can run again")
	ErrDiscoveryNotCompleted = errors.New("discovery has not completed")
	ErrNoSelection           = errors.New("no documents selected")
	ErrInvalidPhase          = errors.New("invalid phase")
	ErrResetBlocked          = errors.New("reset refused while work is running")
	ErrUnknownDocument       = errors.New("unknown document")
	ErrDownloadActive        = errors.New("document is already downloading")
	ErrAlreadyDownloaded     = errors.New("document is already downloaded")
	ErrNothingToProcess      = errors.New("no pending uploads")
	ErrSequenceActive        = errors.New("enhancement sequence in progress")
	ErrPhaseFailed           = errors.New("enhancement phase failed")
	ErrUnknownMethod         = errors.New("unknown discovery method")
)

// DiscoveryMethod picks which remote action runs a discovery. All of them
// report into the discovery stage.
type DiscoveryMethod string

const (
	DiscoveryViaAgent   DiscoveryMethod = "agent"
	DiscoveryViaSources DiscoveryMethod = "sources"
	DiscoveryViaStage1  DiscoveryMethod = "stage1"
)

func (m DiscoveryMethod) Valid() bool {
	switch m {
	case "", DiscoveryViaAgent, DiscoveryViaSources, DiscoveryViaStage1:
		return true
	}
	return false
}

type DiscoveryRequest struct {
	Query              string
	CertificationLevel string
	MaxDocuments       int
	// Method defaults to the agent.
	Method DiscoveryMethod
	// Sources limits a sources discovery to these hosts.
	Sources []string
}

type FactoryRequest struct {
	OutputPhase int
	Documents   []projection.Document
	// JitterSeed enables the optional jitter term of the synthetic example
	// formula. Nil keeps the count fully deterministic.
	JitterSeed *int64
}

// Sink receives progress for a run. A run of 0 means "the current run",
// which is what remote events use since the service does not echo run ids.
type Sink interface {
	ApplyDiscovery(run uint64, u DiscoveryUpdate)
	ApplyFactory(run uint64, u FactoryUpdate)
	ApplyPhase(phase int, run uint64, u PhaseUpdate)
	ApplyDocument(u projection.DocumentUpdate)
	ApplyUpload(u projection.UploadUpdate)
}

// Source produces progress for started work. Start methods return quickly;
// progress arrives later through the sink. An error means nothing was started.
type Source interface {
	StartDiscovery(run uint64, req DiscoveryRequest, sink Sink) error
	StartFactory(run uint64, req FactoryRequest, sink Sink) error
	StartPhase(phase int, run uint64, sink Sink) error
	StartDownload(doc projection.Document, sink Sink) error
	StartUploads(files []projection.UploadedFile, sink Sink) error
}
