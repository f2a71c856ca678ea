package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/memoria-dev/memoria/model"
)

// Known technology names and their display forms. Matching is case
// insensitive, the display form wins over the surface form so that
// "typescript" and "TypeScript" merge into one entity.
var techDisplayNames = map[string]string{
	"typescript": "TypeScript",
	"javascript": "JavaScript",
	"python":     "Python",
	"golang":     "Golang",
	"rust":       "Rust",
	"java":       "Java",
	"kotlin":     "Kotlin",
	"swift":      "Swift",
	"ruby":       "Ruby",
	"php":        "PHP",
	"react":      "React",
	"vue":        "Vue",
	"angular":    "Angular",
	"svelte":     "Svelte",
	"node.js":    "Node.js",
	"django":     "Django",
	"flask":      "Flask",
	"rails":      "Rails",
	"spring":     "Spring",
	"kubernetes": "Kubernetes",
	"docker":     "Docker",
	"postgresql": "PostgreSQL",
	"postgres":   "Postgres",
	"mysql":      "MySQL",
	"sqlite":     "SQLite",
	"redis":      "Redis",
	"mongodb":    "MongoDB",
	"kafka":      "Kafka",
	"rabbitmq":   "RabbitMQ",
	"graphql":    "GraphQL",
	"grpc":       "gRPC",
	"terraform":  "Terraform",
	"linux":      "Linux",
	"git":        "Git",
}

// Common words that never start or form a proper noun entity on their own.
var properNounStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"these": true, "those": true, "i": true, "we": true, "you": true,
	"he": true, "she": true, "it": true, "they": true, "our": true,
	"their": true, "his": true, "her": true, "its": true, "my": true,
	"and": true, "or": true, "but": true, "if": true, "when": true,
	"while": true, "after": true, "before": true, "during": true,
	"also": true, "however": true, "then": true, "there": true,
	"here": true, "what": true, "which": true, "who": true, "how": true,
	"why": true, "where": true, "not": true, "new": true, "all": true,
	"some": true, "use": true, "uses": true, "using": true, "used": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "has": true, "have": true, "had": true, "will": true,
	"would": true, "should": true, "could": true, "can": true,
	"may": true, "please": true, "yes": true, "no": true,
}

var (
	quotedPattern     = regexp.MustCompile(`"([^"\n]{2,60})"`)
	camelCasePattern  = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][A-Za-z0-9]*)+\b`)
	snakeCasePattern  = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
	filePathPattern   = regexp.MustCompile(`\b(?:[\w.-]+/)*[\w.-]+\.(?:go|ts|tsx|js|jsx|py|rs|java|rb|c|h|cpp|md|json|yaml|yml|toml|sql|sh|css|html|proto)\b`)
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+){0,3}\b`)
)

var techPatterns = buildTechPatterns()

type techPattern struct {
	re      *regexp.Regexp
	display string
}

func buildTechPatterns() []techPattern {
	keywords := make([]string, 0, len(techDisplayNames))
	for keyword := range techDisplayNames {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	patterns := make([]techPattern, 0, len(keywords))
	for _, keyword := range keywords {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
		patterns = append(patterns, techPattern{re: re, display: techDisplayNames[keyword]})
	}
	return patterns
}

// ExtractWithPatterns extracts entity and relation candidates from text
// using heuristic patterns. Candidates are deduplicated by lowercased
// name, the first pattern family to claim a surface form assigns its
// type. Offsets are byte offsets into text.
func ExtractWithPatterns(text string) *ExtractionResult {
	if len(strings.TrimSpace(text)) < MinExtractionLength {
		return &ExtractionResult{}
	}

	entities := extractEntityCandidates(text)
	relations := extractRelationCandidates(text, entities)

	return &ExtractionResult{Entities: entities, Relations: relations}
}

func extractEntityCandidates(text string) []model.EntityCandidate {
	var candidates []model.EntityCandidate
	claimed := map[string]bool{}

	add := func(name string, entityType model.EntityType, confidence float64, start, end int) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || claimed[key] {
			return
		}
		claimed[key] = true
		candidates = append(candidates, model.EntityCandidate{
			Name:        name,
			Type:        entityType,
			Confidence:  confidence,
			StartOffset: start,
			EndOffset:   end,
		})
	}

	// 1. Known technology keywords
	for _, tp := range techPatterns {
		loc := tp.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		add(tp.display, model.EntityTypeTechnology, 0.8, loc[0], loc[1])
	}

	// 2. File paths
	for _, loc := range filePathPattern.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], model.EntityTypeFile, 0.8, loc[0], loc[1])
	}

	// 3. CamelCase identifiers
	for _, loc := range camelCasePattern.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], model.EntityTypeTechnology, 0.7, loc[0], loc[1])
	}

	// 4. snake_case identifiers
	for _, loc := range snakeCasePattern.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], model.EntityTypeTechnology, 0.6, loc[0], loc[1])
	}

	// 5. Quoted phrases
	for _, loc := range quotedPattern.FindAllStringSubmatchIndex(text, -1) {
		add(text[loc[2]:loc[3]], model.EntityTypeConcept, 0.7, loc[2], loc[3])
	}

	// 6. Capitalized proper noun sequences, typed by surrounding context
	for _, loc := range properNounPattern.FindAllStringIndex(text, -1) {
		name, start := trimStopWords(text, loc[0], loc[1])
		if name == "" {
			continue
		}
		entityType, confidence := classifyProperNoun(text, start, start+len(name))
		add(name, entityType, confidence, start, start+len(name))
	}

	return candidates
}

// trimStopWords drops leading stop words from a proper noun match and
// returns the remaining name with its adjusted start offset. Returns ""
// when every word is a stop word.
func trimStopWords(text string, start, end int) (string, int) {
	name := text[start:end]
	for {
		word, rest, found := strings.Cut(name, " ")
		if properNounStopWords[strings.ToLower(word)] {
			if !found {
				return "", start
			}
			start += len(word) + 1
			name = rest
			continue
		}
		return name, start
	}
}

// classifyProperNoun picks an entity type from cue words near the match
func classifyProperNoun(text string, start, end int) (model.EntityType, float64) {
	windowStart := start - 60
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := end + 60
	if windowEnd > len(text) {
		windowEnd = len(text)
	}
	window := strings.ToLower(text[windowStart:windowEnd])

	switch {
	case containsAny(window, "developer", "engineer", "author", "maintainer", "designer", "manager", " said", " wrote", "colleague"):
		return model.EntityTypePerson, 0.6
	case containsAny(window, "company", "organization", "org ", "startup", "vendor", "inc.", "corp", "gmbh"):
		return model.EntityTypeOrganization, 0.6
	case containsAny(window, "project", "repository", "repo ", "codebase", "branch", "milestone"):
		return model.EntityTypeProject, 0.6
	default:
		return model.EntityTypeConcept, 0.5
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var verbRelationPatterns = []struct {
	re           *regexp.Regexp
	relationType model.RelationType
}{
	{regexp.MustCompile(`(?i)\b([\w.]+)\s+(?:uses|is using|relies on|depends on|built (?:on|with))\s+([\w.]+)`), model.RelationTypeUses},
	{regexp.MustCompile(`(?i)\b([\w.]+)\s+(?:works on|is working on|maintains|leads|owns)\s+([\w.]+)`), model.RelationTypeWorksOn},
}

// extractRelationCandidates derives relations from verb patterns between
// co-occurring extracted entities. Both endpoints must resolve to an
// extracted entity or the match is dropped.
func extractRelationCandidates(text string, entities []model.EntityCandidate) []model.RelationCandidate {
	byName := map[string]string{}
	for _, entity := range entities {
		byName[strings.ToLower(entity.Name)] = entity.Name
	}

	var relations []model.RelationCandidate
	seen := map[string]bool{}

	for _, vp := range verbRelationPatterns {
		for _, match := range vp.re.FindAllStringSubmatch(text, -1) {
			source, sourceOk := byName[strings.ToLower(match[1])]
			target, targetOk := byName[strings.ToLower(match[2])]
			if !sourceOk || !targetOk || source == target {
				continue
			}

			key := strings.ToLower(source) + "|" + strings.ToLower(target) + "|" + string(vp.relationType)
			if seen[key] {
				continue
			}
			seen[key] = true

			relations = append(relations, model.RelationCandidate{
				SourceName:   source,
				TargetName:   target,
				RelationType: vp.relationType,
				Confidence:   0.6,
			})
		}
	}

	return relations
}
