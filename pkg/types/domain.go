package types

// Category identifies one of the model slots a request can touch.
type Category string

const (
	CategoryClassify  Category = "classify"
	CategorySummarize Category = "summarize"
	CategoryGenerate  Category = "generate"
)

// Categories lists every model category in pipeline order.
var Categories = []Category{CategoryClassify, CategorySummarize, CategoryGenerate}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryClassify, CategorySummarize, CategoryGenerate:
		return true
	}
	return false
}

// Pathology labels produced by the classifier. The slice order is the
// classifier output order and breaks ties between equal probabilities.
const (
	PathologyBPD           = "BPD"
	PathologyBipolar       = "Bipolar Disorder"
	PathologyDepression    = "Depression"
	PathologyAnxiety       = "Anxiety"
	PathologySchizophrenia = "Schizophrenia"
)

var Pathologies = []string{
	PathologyBPD,
	PathologyBipolar,
	PathologyDepression,
	PathologyAnxiety,
	PathologySchizophrenia,
}

// IsPathology reports whether label belongs to the closed label set.
func IsPathology(label string) bool {
	for _, p := range Pathologies {
		if p == label {
			return true
		}
	}
	return false
}

// Tier selects the admission limit applied to a caller.
type Tier string

const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierPremium       Tier = "premium"
)

// ParseTier maps a raw claim value to a Tier. Unknown values report false.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierAnonymous, TierAuthenticated, TierPremium:
		return Tier(s), true
	}
	return TierAnonymous, false
}

// Model describes a model artifact discovered on disk.
type Model struct {
	// Category served by this artifact.
	// example: generate
	Category Category `json:"category" example:"generate"`
	// Human-friendly name (file or directory name).
	// example: llama-3-8b-instruct.Q4_K_M.gguf
	Name string `json:"name" example:"llama-3-8b-instruct.Q4_K_M.gguf"`
	// Absolute path to the artifact (file or bundle directory).
	// example: /srv/models/generator/llama-3-8b-instruct.Q4_K_M.gguf
	Path string `json:"path" example:"/srv/models/generator/llama-3-8b-instruct.Q4_K_M.gguf"`
	// Optional LoRA adapter merged at load time.
	// example: /srv/models/generator/adapter/clinical-lora.gguf
	Adapter string `json:"adapter,omitempty" example:"/srv/models/generator/adapter/clinical-lora.gguf"`
}
