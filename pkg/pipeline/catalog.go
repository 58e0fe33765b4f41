package pipeline

// AgentStep is one step of the discovery agent as shown to the user.
type AgentStep struct {
	ID    string
	Name  string
	Label string
}

// DiscoverySteps is the fixed discovery sequence. Each completed step adds 20%.
var DiscoverySteps = []AgentStep{
	{ID: "init", Name: "Initialize AI Agent", Label: "Initializing AI Agent..."},
	{ID: "generate", Name: "Generate Search Queries", Label: "Generating optimized search queries with AI..."},
	{ID: "search", Name: "Search Web Sources", Label: "Searching web sources for new documents..."},
	{ID: "refine", Name: "Refine Results with AI", Label: "Refining results with AI for optimal RAG training..."},
	{ID: "download", Name: "Prepare Downloads", Label: "Preparing new documents for download..."},
}

// FactoryPhaseSteps lists the factory work per output phase.
var FactoryPhaseSteps = map[int][]string{
	1: {
		"Checking GPU availability (Ollama/Groq)...",
		"Extracting text from seed PDF...",
		"Generating synthetic error patterns (GPU)...",
		"Creating best practices library (GPU)...",
		"Generating troubleshooting scenarios (GPU)...",
		"Building configuration examples (GPU)...",
		"Combining real + synthetic data...",
		"Creating high-density embeddings (GPU)...",
		"Optimizing for basic RAG accuracy...",
		"Finalizing basic Chroma vector store...",
	},
	2: {
		"Initializing Hierarchical Index structure...",
		"Parsing configurations into structured chunks...",
		"Building device memory filters...",
		"Creating feature-area taxonomies...",
		"Implementing version-aware filtering...",
		"Optimizing retrieval precision...",
		"Building foundational index (80-88% accuracy)...",
		"Finalizing hierarchical vector store...",
	},
	3: {
		"Building Graph RAG knowledge graph...",
		"Creating device-feature relationships...",
		"Mapping error-solution dependencies...",
		"Building version compatibility graph...",
		"Implementing graph-aware retrieval...",
		"Optimizing for dependency nuance...",
		"Achieving low 90s accuracy target...",
		"Finalizing Graph RAG layer...",
	},
	4: {
		"Initializing Agentic Loop framework...",
		"Building tool execution pipeline...",
		"Creating hypothesis validation system...",
		"Implementing iterative evidence gathering...",
		"Building command execution interface...",
		"Creating validated case repository...",
		"Optimizing for upper 90s accuracy...",
		"Finalizing Agentic Loop system...",
	},
	5: {
		"Setting up continuous evaluation harness...",
		"Building gold standard test sets...",
		"Implementing regression monitoring...",
		"Creating feedback capture system...",
		"Building automated hardening pipeline...",
		"Implementing accuracy maintenance...",
		"Achieving ≥95% in-scope accuracy...",
		"Finalizing continuous eval system...",
	},
}

// StepsForPhase returns the factory steps for an output phase, falling back
// to phase 1 for anything out of range.
func StepsForPhase(phase int) []string {
	if steps, ok := FactoryPhaseSteps[phase]; ok {
		return steps
	}
	return FactoryPhaseSteps[MinOutputPhase]
}

type PhaseDefinition struct {
	Name  string
	Steps [EnhancementStepCount]string
}

// EnhancementPhases are the four post-factory enhancement passes.
var EnhancementPhases = [EnhancementPhaseCount]PhaseDefinition{
	{
		Name: "Hierarchical Indexing",
		Steps: [EnhancementStepCount]string{
			"Analyzing document structure...",
			"Building section hierarchy...",
			"Attaching device and version metadata...",
			"Creating parent-child chunk links...",
			"Validating hierarchical retrieval...",
		},
	},
	{
		Name: "Graph RAG",
		Steps: [EnhancementStepCount]string{
			"Extracting entities from chunks...",
			"Resolving device-feature relationships...",
			"Linking error-solution dependencies...",
			"Building compatibility edges...",
			"Validating graph-aware retrieval...",
		},
	},
	{
		Name: "Agentic Loop",
		Steps: [EnhancementStepCount]string{
			"Registering diagnostic tools...",
			"Generating hypotheses from evidence...",
			"Running iterative evidence gathering...",
			"Recording validated cases...",
			"Scoring agentic answers...",
		},
	},
	{
		Name: "Continuous Evaluation",
		Steps: [EnhancementStepCount]string{
			"Loading gold standard test set...",
			"Running regression suite...",
			"Capturing feedback signals...",
			"Hardening weak answers...",
			"Publishing accuracy report...",
		},
	},
}

// ValidPhase reports whether n is a 1-based enhancement phase index.
func ValidPhase(n int) bool {
	return n >= 1 && n <= EnhancementPhaseCount
}

// ValidOutputPhase reports whether n is a factory output phase.
func ValidOutputPhase(n int) bool {
	return n >= MinOutputPhase && n <= MaxOutputPhase
}
