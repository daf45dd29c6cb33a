// Package classify turns a downloaded candidate into a typed suggestion by
// running four structured-output model calls: title cleanup, library
// selection, content tagging, and catalog-backed enrichment. Every call
// degrades to confidence zero instead of failing the import.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/store"
	"curator/internal/textutil"
)

// Step names one of the engine's classification calls.
type Step string

const (
	StepTitle    Step = "title"
	StepLibrary  Step = "library"
	StepClassify Step = "classify"
	StepEnrich   Step = "enrich"
)

// CallResult records the outcome of one classification call.
type CallResult struct {
	Step       Step
	Confidence float64
	Rationale  string
	Degraded   bool
}

// Input is everything the engine needs to classify one candidate.
type Input struct {
	Candidate       store.Candidate
	Libraries       []config.Library
	PinnedLibraryID int64

	// Subfolders, when non-nil, supplies the subfolders already in use per
	// library so the content call can reuse existing folder names.
	Subfolders SubfolderLister
}

// SubfolderLister reports the distinct subfolders already present in a
// library. *store.Store satisfies it.
type SubfolderLister interface {
	ListEntrySubfolders(ctx context.Context, libraryID int64) ([]string, error)
}

// Outcome is the engine's final suggestion plus per-call confidences.
type Outcome struct {
	Suggestion store.Suggestion
	Enrichment catalog.Enrichment
	Confidence float64
	Calls      []CallResult
}

// MetadataEnricher retrieves catalog facts once the library is known.
type MetadataEnricher interface {
	Enrich(ctx context.Context, libraryType, title, uploader string) catalog.Enrichment
}

// Engine orchestrates the four-call classification flow.
type Engine struct {
	client       Completer
	enricher     MetadataEnricher
	logger       *slog.Logger
	callTimeout  time.Duration
	relaxedScale float64
	weights      [4]float64
}

// NewEngine builds an engine from configuration. The enricher may be nil,
// in which case the enrichment call runs without catalog facts.
func NewEngine(client Completer, enricher MetadataEnricher, cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultHTTPTimeout
	if cfg.LLM.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	}
	scale := cfg.Import.RelaxedTimeoutScale
	if scale < 1 {
		scale = 2
	}
	return &Engine{
		client:       client,
		enricher:     enricher,
		logger:       logger,
		callTimeout:  timeout,
		relaxedScale: scale,
		weights:      cfg.ConfidenceWeights(),
	}
}

// Classify runs the full flow. The progress callback, when non-nil, fires
// after each step completes. The returned error covers only unrecoverable
// conditions (context cancellation); model failures degrade per call.
func (e *Engine) Classify(ctx context.Context, input Input, progress func(Step)) (*Outcome, error) {
	report := func(step Step) {
		if progress != nil {
			progress(step)
		}
	}

	outcome := &Outcome{}
	outcome.Suggestion.Title = textutil.NormalizeTitle(input.Candidate.Title)

	// Call 1: title cleanup.
	var title titleResponse
	titleCall := e.call(ctx, StepTitle, titlePrompt, describeCandidate(input.Candidate), &title, func() error {
		if strings.TrimSpace(title.Title) == "" {
			return fmt.Errorf("empty title")
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !titleCall.Degraded {
		outcome.Suggestion.Title = strings.TrimSpace(title.Title)
		outcome.Suggestion.Description = strings.TrimSpace(title.Description)
	}
	outcome.Calls = append(outcome.Calls, titleCall)
	report(StepTitle)

	// Call 2: library selection, skipped when the caller pinned a library.
	library, libraryCall := e.selectLibrary(ctx, input, outcome.Suggestion.Title)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	outcome.Suggestion.LibraryID = library.ID
	if libraryCall != nil {
		outcome.Calls = append(outcome.Calls, libraryCall.CallResult)
		outcome.Suggestion.Subfolder = libraryCall.subfolder()
	}
	report(StepLibrary)

	// Catalog enrichment feeds the remaining calls.
	if e.enricher != nil && library.ID != 0 {
		outcome.Enrichment = e.enricher.Enrich(ctx, library.Type, outcome.Suggestion.Title, input.Candidate.Uploader)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Call 3: content tags and properties. The prompt carries the chosen
	// library's path template and its existing subfolders so the model reuses
	// established folder names instead of inventing near-duplicates.
	var subfolders []string
	if input.Subfolders != nil && library.ID != 0 {
		listed, listErr := input.Subfolders.ListEntrySubfolders(ctx, library.ID)
		if listErr != nil {
			e.logger.Warn("subfolder inventory failed",
				logging.Int64("library_id", library.ID),
				logging.Error(listErr))
		} else {
			subfolders = listed
		}
	}
	var content contentResponse
	classifyCall := e.call(ctx, StepClassify, contentPrompt,
		describeCandidate(input.Candidate)+"\n\n"+describeLibraryContext(library, subfolders)+"\n\n"+describeEnrichment(outcome.Enrichment),
		&content, func() error {
			if len(content.Tags) == 0 && len(content.Properties) == 0 {
				return fmt.Errorf("no tags or properties")
			}
			return nil
		})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !classifyCall.Degraded {
		outcome.Suggestion.Tags = content.suggestedTags()
		outcome.Suggestion.Properties = content.suggestedProperties()
	}
	outcome.Calls = append(outcome.Calls, classifyCall)
	report(StepClassify)

	// Call 4: merge catalog facts into the final suggestion.
	var enriched enrichResponse
	enrichCall := e.call(ctx, StepEnrich, enrichPrompt,
		describeSuggestion(outcome.Suggestion)+"\n\n"+describeEnrichment(outcome.Enrichment),
		&enriched, func() error {
			if strings.TrimSpace(enriched.Title) == "" {
				return fmt.Errorf("empty title")
			}
			return nil
		})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !enrichCall.Degraded {
		outcome.Suggestion.Title = strings.TrimSpace(enriched.Title)
		if desc := strings.TrimSpace(enriched.Description); desc != "" {
			outcome.Suggestion.Description = desc
		}
		if sub := strings.TrimSpace(enriched.Subfolder); sub != "" {
			outcome.Suggestion.Subfolder = sub
		}
		for _, tag := range enriched.Tags {
			outcome.Suggestion.Tags = appendTag(outcome.Suggestion.Tags, tag.Name, tag.Confidence, store.ProvenanceModel)
		}
	}
	outcome.Calls = append(outcome.Calls, enrichCall)
	report(StepEnrich)

	// Catalog facts land as properties with catalog provenance.
	outcome.Suggestion.Properties = appendEnrichmentProperties(outcome.Suggestion.Properties, outcome.Enrichment)

	outcome.Confidence = e.aggregate(outcome.Calls)
	return outcome, nil
}

// selectLibrary resolves the destination library, either from the pin or by
// running call 2. Returns the chosen library and the call result (nil when
// the call was skipped).
func (e *Engine) selectLibrary(ctx context.Context, input Input, title string) (config.Library, *libraryCallResult) {
	if input.PinnedLibraryID != 0 {
		for _, lib := range input.Libraries {
			if lib.ID == input.PinnedLibraryID {
				return lib, nil
			}
		}
		// Unknown pin: fall through to model selection.
	}

	var selection libraryResponse
	prompt := describeCandidate(input.Candidate) + "\n\nworking title: " + title + "\n\n" + describeLibraries(input.Libraries)
	call := e.call(ctx, StepLibrary, libraryPrompt, prompt, &selection, func() error {
		for _, lib := range input.Libraries {
			if lib.ID == selection.LibraryID {
				return nil
			}
		}
		return fmt.Errorf("library id %d not offered", selection.LibraryID)
	})

	result := &libraryCallResult{CallResult: call}
	if !call.Degraded {
		result.Subfolder = strings.TrimSpace(selection.Subfolder)
		for _, lib := range input.Libraries {
			if lib.ID == selection.LibraryID {
				return lib, result
			}
		}
	}
	// Degraded selection: return the zero library so the decision router
	// sends the item to review instead of guessing a destination.
	return config.Library{}, result
}

type libraryCallResult struct {
	CallResult
	Subfolder string
}

func (r *libraryCallResult) subfolder() string {
	if r == nil {
		return ""
	}
	return r.Subfolder
}

// call runs one structured-output request with the standard budget, retries
// once with a relaxed budget on parse or timeout failure, then degrades to
// confidence zero. The target must embed a confidence/rationale pair.
func (e *Engine) call(ctx context.Context, step Step, systemPrompt, userPrompt string, target confidenceCarrier, validate func() error) CallResult {
	budgets := []time.Duration{
		e.callTimeout,
		time.Duration(float64(e.callTimeout) * e.relaxedScale),
	}
	var lastErr error
	for _, budget := range budgets {
		if ctx.Err() != nil {
			break
		}
		callCtx, cancel := context.WithTimeout(ctx, budget)
		content, err := e.client.CompleteJSON(callCtx, systemPrompt, userPrompt)
		cancel()
		if err == nil {
			err = DecodeModelJSON(content, target)
		}
		if err == nil {
			err = validate()
		}
		if err == nil {
			confidence, rationale := target.confidenceAndRationale()
			return CallResult{
				Step:       step,
				Confidence: clampConfidence(confidence),
				Rationale:  rationale,
			}
		}
		lastErr = err
		e.logger.Warn("classification call failed",
			logging.String("step", string(step)),
			logging.Duration("budget", budget),
			logging.Error(err))
	}

	rationale := "call degraded"
	if lastErr != nil {
		rationale = "call degraded: " + lastErr.Error()
	}
	return CallResult{Step: step, Confidence: 0, Rationale: rationale, Degraded: true}
}

// aggregate computes the weighted mean of the call confidences. Skipped
// calls simply do not participate, so a pinned library averages three calls.
func (e *Engine) aggregate(calls []CallResult) float64 {
	weightFor := map[Step]float64{
		StepTitle:    e.weights[0],
		StepLibrary:  e.weights[1],
		StepClassify: e.weights[2],
		StepEnrich:   e.weights[3],
	}
	var sum, totalWeight float64
	for _, call := range calls {
		w := weightFor[call.Step]
		if w <= 0 {
			continue
		}
		sum += call.Confidence * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return clampConfidence(sum / totalWeight)
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

type confidenceCarrier interface {
	confidenceAndRationale() (float64, string)
}

type callMeta struct {
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (m callMeta) confidenceAndRationale() (float64, string) {
	return m.Confidence, strings.TrimSpace(m.Rationale)
}

type titleResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	callMeta
}

type libraryResponse struct {
	LibraryID int64  `json:"library_id"`
	Subfolder string `json:"subfolder"`
	callMeta
}

type contentResponse struct {
	Tags []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	Properties []struct {
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"properties"`
	callMeta
}

func (r contentResponse) suggestedTags() []store.SuggestedTag {
	var tags []store.SuggestedTag
	for _, tag := range r.Tags {
		tags = appendTag(tags, tag.Name, tag.Confidence, store.ProvenanceModel)
	}
	return tags
}

func (r contentResponse) suggestedProperties() []store.SuggestedProperty {
	var properties []store.SuggestedProperty
	for _, property := range r.Properties {
		key := strings.TrimSpace(property.Key)
		if key == "" {
			continue
		}
		properties = append(properties, store.SuggestedProperty{
			Key:        key,
			Value:      strings.TrimSpace(property.Value),
			Confidence: clampConfidence(property.Confidence),
			Provenance: store.ProvenanceModel,
		})
	}
	return properties
}

type enrichResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subfolder   string `json:"subfolder"`
	Tags        []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	callMeta
}

func appendTag(tags []store.SuggestedTag, name string, confidence float64, provenance string) []store.SuggestedTag {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return tags
	}
	for _, existing := range tags {
		if existing.Name == name {
			return tags
		}
	}
	return append(tags, store.SuggestedTag{Name: name, Confidence: clampConfidence(confidence), Provenance: provenance})
}

func appendEnrichmentProperties(properties []store.SuggestedProperty, enrichment catalog.Enrichment) []store.SuggestedProperty {
	if enrichment.Empty() {
		return properties
	}
	add := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		for _, existing := range properties {
			if existing.Key == key {
				return
			}
		}
		properties = append(properties, store.SuggestedProperty{
			Key: key, Value: value, Confidence: 1, Provenance: store.ProvenanceCatalog,
		})
	}
	add("artist", enrichment.Artist)
	add("album", enrichment.Album)
	add("year", enrichment.Year)
	add("catalog_source", enrichment.Source)
	return properties
}

func describeCandidate(candidate store.Candidate) string {
	var b strings.Builder
	write := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}
	write("source url", candidate.SourceURL)
	write("raw title", candidate.Title)
	write("description", candidate.Description)
	write("platform", candidate.Platform)
	write("uploader", candidate.Uploader)
	if candidate.Technical != nil {
		if candidate.Technical.Duration > 0 {
			write("duration seconds", fmt.Sprintf("%.0f", candidate.Technical.Duration))
		}
		write("container", candidate.Technical.Container)
		if candidate.Technical.VideoCodec != "" {
			write("video codec", candidate.Technical.VideoCodec)
		} else {
			write("streams", "audio only")
		}
	}
	return strings.TrimSpace(b.String())
}

func describeLibraries(libraries []config.Library) string {
	var b strings.Builder
	b.WriteString("available libraries:\n")
	for _, lib := range libraries {
		fmt.Fprintf(&b, "- id=%d name=%q type=%s\n", lib.ID, lib.Name, lib.Type)
	}
	return strings.TrimSpace(b.String())
}

func describeLibraryContext(library config.Library, subfolders []string) string {
	if library.ID == 0 {
		return "destination library: undecided"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "destination library: name=%q type=%s\n", library.Name, library.Type)
	if library.PathTemplate != "" {
		fmt.Fprintf(&b, "path template: %s\n", library.PathTemplate)
	}
	if len(subfolders) > 0 {
		fmt.Fprintf(&b, "existing subfolders: %s\n", strings.Join(subfolders, ", "))
	}
	return strings.TrimSpace(b.String())
}

func describeSuggestion(suggestion store.Suggestion) string {
	encoded, err := json.Marshal(suggestion)
	if err != nil {
		return "working suggestion: {}"
	}
	return "working suggestion: " + string(encoded)
}

func describeEnrichment(enrichment catalog.Enrichment) string {
	if enrichment.Empty() {
		return "catalog facts: none"
	}
	return "catalog facts:\n" + enrichment.Describe()
}
