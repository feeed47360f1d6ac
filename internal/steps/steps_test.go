package steps

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/capability/capabilitytest"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
)

// newCaps создаёт реестр, где все capability обслуживает один fake.
func newCaps(p *capabilitytest.Provider) *capability.Registry {
	caps := capability.NewRegistry()
	for _, kind := range capability.Kinds() {
		caps.Register(kind, p)
	}
	return caps
}

// collect возвращает колбэк, который копит тексты промежуточных результатов.
func collect(out *[]string) ChunkFunc {
	return func(p domain.Payload) {
		*out = append(*out, p.Text)
	}
}

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	// Регистрация
	r.Register(NewTextInputStep())
	if r.Count() != 1 {
		t.Errorf("expected 1 step, got %d", r.Count())
	}

	// Получение
	step, err := r.Get(domain.NodeTypeTextInput)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if step.Type() != domain.NodeTypeTextInput {
		t.Errorf("expected textInput, got %s", step.Type())
	}

	// Несуществующий тип
	_, err = r.Get("unknown")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	// Unregister
	r.Unregister(domain.NodeTypeTextInput)
	if r.Has(domain.NodeTypeTextInput) {
		t.Error("should not have textInput after unregister")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(capability.NewRegistry())

	for _, typ := range domain.NodeTypes() {
		if !r.Has(typ) {
			t.Errorf("default registry should have %s", typ)
		}
	}
	if len(r.Types()) != len(domain.NodeTypes()) {
		t.Errorf("expected %d types, got %d", len(domain.NodeTypes()), len(r.Types()))
	}
}

// Input Step Tests

func TestInputSteps(t *testing.T) {
	ctx := context.Background()

	out, err := NewTextInputStep().Execute(ctx, &Request{
		Node:  &domain.Node{Type: domain.NodeTypeTextInput},
		Input: "Hello",
	})
	if err != nil || out.Text != "Hello" || out.Attachments == nil || len(out.Attachments) != 0 {
		t.Errorf("textInput: got (%+v, %v)", out, err)
	}

	img := &domain.Node{
		Type:   domain.NodeTypeImageInput,
		Name:   "Photo",
		Config: domain.NodeConfig{Attachment: &domain.Attachment{Name: "a.png", FileHandle: "h1"}},
	}
	out, err = NewAttachmentInputStep(domain.NodeTypeImageInput).Execute(ctx, &Request{Node: img})
	if err != nil {
		t.Fatalf("imageInput: unexpected error: %v", err)
	}
	if out.Text != "" || len(out.Attachments) != 1 {
		t.Fatalf("imageInput: unexpected payload %+v", out)
	}
	if out.Attachments[0].Kind != domain.AttachmentImage {
		t.Errorf("expected kind image, got %q", out.Attachments[0].Kind)
	}
	// Конфиг узла не меняется
	if img.Config.Attachment.Kind != "" {
		t.Error("node config must stay read-only")
	}

	// Без вложения — пустой список
	out, _ = NewAttachmentInputStep(domain.NodeTypeAudioInput).Execute(ctx, &Request{
		Node: &domain.Node{Type: domain.NodeTypeAudioInput},
	})
	if len(out.Attachments) != 0 {
		t.Errorf("expected no attachments, got %v", out.Attachments)
	}
}

// Writer / Rewriter / Summarizer Tests

func TestWriterStep_StreamsAccumulatedText(t *testing.T) {
	fake := capabilitytest.New().Reply("Hel", "lo", "!")
	step := NewWriterStep(newCaps(fake))

	var chunks []string
	out, err := step.Execute(context.Background(), &Request{
		Node:    &domain.Node{ID: "2", Type: domain.NodeTypeWriter, Name: "Writer"},
		Input:   "Say hello",
		OnChunk: collect(&chunks),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Text != "Hello!" {
		t.Errorf("expected Hello!, got %q", out.Text)
	}
	if !slices.Equal(chunks, []string{"Hel", "Hello", "Hello!"}) {
		t.Errorf("unexpected chunks %v", chunks)
	}

	calls := fake.Calls()
	if len(calls) != 1 || !calls[0].Streaming || calls[0].Input.Text != "Say hello" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	opts := calls[0].Options
	if opts.Tone != "neutral" || opts.Format != "plain-text" || opts.Length != "medium" {
		t.Errorf("expected writer defaults, got %+v", opts)
	}
	if fake.OpenSessions() != 0 {
		t.Errorf("session should be closed, %d open", fake.OpenSessions())
	}
}

func TestWriterStep_Unavailable(t *testing.T) {
	fake := capabilitytest.New().WithAvailability(capability.Downloadable, nil)
	step := NewWriterStep(newCaps(fake))

	_, err := step.Execute(context.Background(), &Request{
		Node: &domain.Node{ID: "2", Type: domain.NodeTypeWriter, Name: "Writer"},
	})

	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapabilityError, got %T", err)
	}
	if capErr.NodeID != "2" || capErr.NodeName != "Writer" {
		t.Errorf("unexpected node in error: %+v", capErr)
	}
	want := "Writer failed: Writer API is not available (status: downloadable)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if len(fake.Calls()) != 0 {
		t.Error("backend must not be called when unavailable")
	}
}

func TestRewriterStep_Defaults(t *testing.T) {
	fake := capabilitytest.New().Reply("better")
	step := NewRewriterStep(newCaps(fake))

	_, err := step.Execute(context.Background(), &Request{
		Node: &domain.Node{Type: domain.NodeTypeRewriter, Config: domain.NodeConfig{SharedContext: "blog"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := fake.Calls()[0].Options
	if opts.Tone != "as-is" || opts.Length != "as-is" || opts.SharedContext != "blog" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestSummarizerStep_OptionsAndContext(t *testing.T) {
	fake := capabilitytest.New().Reply("tl;dr")
	step := NewSummarizerStep(newCaps(fake))

	_, err := step.Execute(context.Background(), &Request{
		Node: &domain.Node{Type: domain.NodeTypeSummarizer, Config: domain.NodeConfig{
			SummaryType: "Key Points",
			Format:      "PlainText",
			Length:      "LONG",
			ContextHint: "for engineers",
		}},
		Input: "long text",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := fake.Calls()[0]
	if call.Options.Type != "key-points" || call.Options.Format != "plain-text" || call.Options.Length != "long" {
		t.Errorf("unexpected options %+v", call.Options)
	}
	if call.Input.Context != "for engineers" {
		t.Errorf("expected contextHint as call context, got %q", call.Input.Context)
	}
}

func TestNormalizeSummary(t *testing.T) {
	types := map[string]string{
		"": "tldr", "keypoints": "key-points", "key-points": "key-points",
		"Teaser": "teaser", "headline": "headline", "tl;dr": "tldr", "tld": "tldr", "other": "tldr",
	}
	for in, want := range types {
		if got := NormalizeSummaryType(in); got != want {
			t.Errorf("NormalizeSummaryType(%q) = %q, want %q", in, got, want)
		}
	}

	if NormalizeSummaryFormat("") != "markdown" || NormalizeSummaryFormat("plaintext") != "plain-text" {
		t.Error("NormalizeSummaryFormat mismatch")
	}
	if NormalizeSummaryLength("") != "short" || NormalizeSummaryLength("medium") != "medium" {
		t.Error("NormalizeSummaryLength mismatch")
	}
}

// Prompt Tests

func TestPromptStep_MultimodalScenario(t *testing.T) {
	fake := capabilitytest.New().Reply("a cat")
	step := NewPromptStep(newCaps(fake))

	results := engine.MapView{
		"ImageNode": {Text: "", Attachments: []domain.Attachment{
			{Kind: domain.AttachmentImage, Name: "a.png", FileHandle: "h1"},
			{Kind: domain.AttachmentImage, Name: "b.png", FileHandle: "h2"},
		}},
	}
	node := &domain.Node{ID: "p", Type: domain.NodeTypePrompt, Name: "Ask", Config: domain.NodeConfig{
		SelectedAttachments:  []string{"ImageNode"},
		ImageAttachmentLimit: 1,
		SystemPrompt:         "  be brief ",
	}}

	out, err := step.Execute(context.Background(), &Request{Node: node, Input: "What is this?", Results: results})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "a cat" {
		t.Errorf("expected a cat, got %q", out.Text)
	}

	call := fake.Calls()[0]
	if len(call.Input.Messages) != 1 {
		t.Fatalf("expected one multimodal message, got %+v", call.Input.Messages)
	}
	msg := call.Input.Messages[0]
	if msg.Role != capability.RoleUser || len(msg.Content) != 2 {
		t.Fatalf("expected user message with 2 parts, got %+v", msg)
	}
	if msg.Content[0].Type != "text" || msg.Content[0].Value != "What is this?" {
		t.Errorf("unexpected text part %+v", msg.Content[0])
	}
	att := msg.Content[1].Attachment
	if msg.Content[1].Type != "image" || att == nil || att.Name != "a.png" || att.SourceNode != "ImageNode" {
		t.Errorf("unexpected attachment part %+v", msg.Content[1])
	}

	opts := call.Options
	if opts.Temperature != 1 || opts.TopK != 3 || opts.SystemPrompt != "be brief" {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(opts.ExpectedInputs) != 2 || opts.ExpectedInputs[1].Type != "image" {
		t.Errorf("unexpected expected inputs %+v", opts.ExpectedInputs)
	}

	// Проверка доступности тоже заявляет модальности
	avail := fake.AvailabilityCalls()
	if len(avail) != 1 || len(avail[0].ExpectedInputs) != 2 {
		t.Errorf("availability should declare expected inputs, got %+v", avail)
	}
}

func TestPromptStep_PlainText(t *testing.T) {
	fake := capabilitytest.New().Reply("ok")
	step := NewPromptStep(newCaps(fake))

	node := &domain.Node{Type: domain.NodeTypePrompt, Config: domain.NodeConfig{
		SelectedAttachments: []string{"Missing"},
		Temperature:         0.2,
		TopK:                8,
	}}
	_, err := step.Execute(context.Background(), &Request{Node: node, Input: "hi", Results: engine.MapView{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := fake.Calls()[0]
	if call.Input.Messages != nil || call.Input.Text != "hi" {
		t.Errorf("expected plain text input, got %+v", call.Input)
	}
	if call.Options.Temperature != 0.2 || call.Options.TopK != 8 || call.Options.ExpectedInputs != nil {
		t.Errorf("unexpected options %+v", call.Options)
	}
}

func TestCollectAttachments(t *testing.T) {
	results := engine.MapView{
		"Img":   {Attachments: []domain.Attachment{{Kind: domain.AttachmentImage, FileHandle: "i1"}, {Kind: domain.AttachmentImage}}},
		"Img2":  {Attachments: []domain.Attachment{{Kind: domain.AttachmentImage, FileHandle: "i2"}}},
		"Audio": {Attachments: []domain.Attachment{{Kind: domain.AttachmentAudio, FileHandle: "a1"}}},
	}

	tests := []struct {
		name     string
		cfg      domain.NodeConfig
		expected []string
	}{
		{"unlimited", domain.NodeConfig{SelectedAttachments: []string{"Img", "Img2", "Audio"}}, []string{"i1", "i2", "a1"}},
		{"image cap", domain.NodeConfig{SelectedAttachments: []string{"Img", "Img2", "Audio"}, ImageAttachmentLimit: 1}, []string{"i1", "a1"}},
		{"audio cap", domain.NodeConfig{SelectedAttachments: []string{"Audio", "Img2"}, AudioAttachmentLimit: 1}, []string{"a1", "i2"}},
		{"missing skipped", domain.NodeConfig{SelectedAttachments: []string{"Nope", ""}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &domain.Node{Type: domain.NodeTypePrompt, Config: tt.cfg}
			got := CollectAttachments(node, results)

			var handles []string
			for _, a := range got {
				handles = append(handles, a.FileHandle)
				if a.SourceNode == "" {
					t.Errorf("attachment %s has no source node", a.FileHandle)
				}
			}
			if !slices.Equal(handles, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, handles)
			}
		})
	}
}

// Proofreader / Translator Tests

func TestProofreaderStep(t *testing.T) {
	fake := capabilitytest.New().Reply("Fixed text.")
	step := NewProofreaderStep(newCaps(fake))

	var chunks []string
	out, err := step.Execute(context.Background(), &Request{
		Node:    &domain.Node{Type: domain.NodeTypeProofreader},
		Input:   "fixd txt",
		OnChunk: collect(&chunks),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "Fixed text." || !slices.Equal(chunks, []string{"Fixed text."}) {
		t.Errorf("unexpected result %q, chunks %v", out.Text, chunks)
	}

	call := fake.Calls()[0]
	if call.Streaming {
		t.Error("proofreader should use one-shot generation")
	}
	if call.Input.Text != "Proofread and correct this text:\n\nfixd txt" {
		t.Errorf("unexpected input %q", call.Input.Text)
	}
	if call.Options.Temperature != 0.5 || call.Options.TopK != 3 || call.Options.SystemPrompt != proofreaderSystemPrompt {
		t.Errorf("unexpected options %+v", call.Options)
	}
}

func TestTranslatorStep_DownloadProgress(t *testing.T) {
	fake := capabilitytest.New().
		WithAvailability(capability.Downloading, nil).
		WithDownload(0.25, 1).
		Reply("hola")
	step := NewTranslatorStep(newCaps(fake))

	var chunks []string
	out, err := step.Execute(context.Background(), &Request{
		Node:    &domain.Node{Type: domain.NodeTypeTranslator},
		Input:   "hello",
		OnChunk: collect(&chunks),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hola" {
		t.Errorf("expected hola, got %q", out.Text)
	}

	expected := []string{
		"Downloading translation model... 25%",
		"Downloading translation model... 100%",
		"Model ready. Starting translation...",
		"hola",
	}
	if !slices.Equal(chunks, expected) {
		t.Errorf("expected %v, got %v", expected, chunks)
	}

	opts := fake.Calls()[0].Options
	if opts.SourceLanguage != "en" || opts.TargetLanguage != "es" {
		t.Errorf("expected en → es defaults, got %+v", opts)
	}
}

func TestTranslatorStep_Unavailable(t *testing.T) {
	fake := capabilitytest.New().WithAvailability(capability.Unavailable, nil)
	step := NewTranslatorStep(newCaps(fake))

	_, err := step.Execute(context.Background(), &Request{
		Node: &domain.Node{Type: domain.NodeTypeTranslator, Config: domain.NodeConfig{TargetLanguage: "ja"}},
	})

	want := "Translator failed: Translation for en → ja is not available (status: unavailable)"
	if err == nil || err.Error() != want {
		t.Errorf("expected %q, got %v", want, err)
	}
}

func TestDownloadPercent(t *testing.T) {
	tests := map[float64]int{0: 0, 0.5: 50, 1: 100, 42: 42, 250: 100, -1: 0}
	for in, want := range tests {
		if got := downloadPercent(in); got != want {
			t.Errorf("downloadPercent(%v) = %d, want %d", in, got, want)
		}
	}
}

// Dispatcher Tests

func TestDispatcher_Errors(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Registry: DefaultRegistry(capability.NewRegistry())})
	ctx := context.Background()

	// Неизвестный тип
	_, err := d.Dispatch(ctx, &Request{Node: &domain.Node{ID: "x", Name: "X", Type: "painter"}})
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}

	// Нет backend
	_, err = d.Dispatch(ctx, &Request{Node: &domain.Node{ID: "w", Name: "W", Type: domain.NodeTypeWriter}})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
	var capErr *CapabilityError
	if !errors.As(err, &capErr) || capErr.NodeName != "W" {
		t.Errorf("expected CapabilityError for W, got %v", err)
	}
}

func TestDispatcher_BackendFailure(t *testing.T) {
	boom := errors.New("model crashed")
	fake := capabilitytest.New().Reply("par").Fail(boom)
	d := NewDispatcher(DispatcherConfig{Registry: DefaultRegistry(newCaps(fake))})

	_, err := d.Dispatch(context.Background(), &Request{
		Node: &domain.Node{ID: "p", Name: "Ask", Type: domain.NodeTypePrompt},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if err.Error() != "Prompt API failed: model crashed" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if fake.OpenSessions() != 0 {
		t.Error("session should be closed after failure")
	}
}

func TestDispatcher_Cancelled(t *testing.T) {
	fake := capabilitytest.New().Reply("a").BlockUntilCancel()
	d := NewDispatcher(DispatcherConfig{Registry: DefaultRegistry(newCaps(fake))})

	ctx, cancel := context.WithCancel(context.Background())
	var chunks []string
	_, err := d.Dispatch(ctx, &Request{
		Node: &domain.Node{Type: domain.NodeTypeWriter},
		OnChunk: func(p domain.Payload) {
			chunks = append(chunks, p.Text)
			cancel()
		},
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk before cancel, got %v", chunks)
	}
}

// Normalization Tests

// rawStep возвращает payload как есть, без нормализации.
type rawStep struct{ out domain.Payload }

func (s rawStep) Type() domain.NodeType { return domain.NodeTypeWriter }

func (s rawStep) Execute(context.Context, *Request) (domain.Payload, error) { return s.out, nil }

func TestDispatcher_NormalizesPayload(t *testing.T) {
	r := NewRegistry()
	r.Register(rawStep{out: domain.Payload{Text: "bare string"}})
	d := NewDispatcher(DispatcherConfig{Registry: r})

	out, err := d.Dispatch(context.Background(), &Request{
		Node: &domain.Node{ID: "w", Name: "W", Type: domain.NodeTypeWriter},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Голая строка становится {text, attachments: []}
	if out.Text != "bare string" || out.Attachments == nil || len(out.Attachments) != 0 {
		t.Errorf("expected normalized payload, got %+v", out)
	}
}
