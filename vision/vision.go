// Package vision talks to an OpenAI-compatible vision model. It describes
// images, returns structured image annotations validated against the image
// metadata schema, and transcribes tables found in images.
//
// The client never retries on its own; callers own the retry policy.
package vision

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tsawler/docmark/model"
)

//go:embed schema/image_metadata.json
var imageMetadataSchema string

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("empty response from vision model")

const (
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 1000
	DefaultTimeout   = 30 * time.Second
)

const (
	describePrompt = "Describe this image in detail. Focus on any text, tables, charts, or important visual elements that might be relevant for document processing."
	tablePrompt    = "Identify if there is a table in this image. If a table is found, format it as a Markdown table with a header row. If no table is found, respond with \"No table found\"."
)

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// Timeout bounds every request, independent of the caller's context.
	Timeout time.Duration
	// HTTPClient is used for all requests. A private client is created
	// when nil.
	HTTPClient *http.Client
}

// ImageContext tells the model where an image sits in its document.
type ImageContext struct {
	ID       string
	Filename string
	Page     int
	Section  string
	Caption  string
	Location model.BBox
}

// Client is a vision model client. It is safe for concurrent use.
type Client struct {
	api       openai.Client
	http      *http.Client
	model     string
	maxTokens int
	timeout   time.Duration
	schema    *jsonschema.Schema
	text      *bluemonday.Policy
	markup    *bluemonday.Policy
	logger    *slog.Logger
}

// New creates a client. The image metadata schema is compiled once here.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	schema, err := jsonschema.CompileString("image_metadata.json", imageMetadataSchema)
	if err != nil {
		return nil, fmt.Errorf("compile image metadata schema: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:       openai.NewClient(opts...),
		http:      hc,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		schema:    schema,
		text:      bluemonday.StrictPolicy(),
		markup:    bluemonday.UGCPolicy(),
		logger:    logger,
	}, nil
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Describe returns a free-text description of img.
func (c *Client) Describe(ctx context.Context, img []byte, mimeType string) (string, error) {
	reply, err := c.complete(ctx, describePrompt, img, mimeType)
	if err != nil {
		return "", err
	}
	return c.clean(c.text, reply), nil
}

// TranscribeTable returns the model's markdown (or HTML) table for img, or
// "No table found".
func (c *Client) TranscribeTable(ctx context.Context, img []byte, mimeType string) (string, error) {
	reply, err := c.complete(ctx, tablePrompt, img, mimeType)
	if err != nil {
		return "", err
	}
	return c.clean(c.markup, reply), nil
}

// Annotate asks for an image metadata record. A reply that is not valid
// JSON or fails schema validation still succeeds, as a
// *model.MinimalAnnotation carrying the raw text. Errors are returned only
// when the request itself failed.
func (c *Client) Annotate(ctx context.Context, img []byte, mimeType string, ic ImageContext) (model.Annotation, error) {
	reply, err := c.complete(ctx, annotatePrompt(ic), img, mimeType)
	if err != nil {
		return nil, err
	}
	return c.annotation(reply, ic), nil
}

func (c *Client) annotation(reply string, ic ImageContext) model.Annotation {
	raw := stripFence(reply)

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		c.logger.Debug("vision.annotation.invalid_json", "image_id", ic.ID, "error", err)
		return &model.MinimalAnnotation{Description: c.clean(c.text, reply), Reason: "invalid JSON: " + err.Error()}
	}
	if err := c.schema.Validate(doc); err != nil {
		c.logger.Debug("vision.annotation.schema_mismatch", "image_id", ic.ID, "error", err)
		return &model.MinimalAnnotation{Description: c.clean(c.text, reply), Reason: "schema validation: " + err.Error()}
	}

	var meta model.ImageMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return &model.MinimalAnnotation{Description: c.clean(c.text, reply), Reason: err.Error()}
	}
	meta.Title = c.clean(c.text, meta.Title)
	meta.Caption = c.clean(c.text, meta.Caption)
	meta.Description = c.clean(c.text, meta.Description)
	meta.ContextualSummary = c.clean(c.text, meta.ContextualSummary)
	meta.AIAnnotations.OCRText = c.clean(c.text, meta.AIAnnotations.OCRText)
	meta.AIAnnotations.ExplanationGenerated = c.clean(c.text, meta.AIAnnotations.ExplanationGenerated)
	return &meta
}

// complete sends one user message holding prompt and the image. The call
// runs under its own timeout and survives caller cancellation.
func (c *Client) complete(ctx context.Context, prompt string, img []byte, mimeType string) (string, error) {
	if len(img) == 0 {
		return "", errors.New("image data is required")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	url := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img)
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(int64(c.maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

// clean strips markup the policy does not allow. The policies escape text,
// so entities are decoded afterwards.
func (c *Client) clean(p *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}

func annotatePrompt(ic ImageContext) string {
	var sb strings.Builder
	sb.WriteString("Analyze this image from a document and return a single JSON object with these fields: ")
	sb.WriteString("id, type (image, diagram, chart, graph, photo, table, screenshot), title, caption, ")
	sb.WriteString("source {filename, page, documentSection}, location {x, y, width, height}, description, ")
	sb.WriteString("contextualSummary, linkedEntities [{type, value}], textReferences [{text, section, page}], ")
	sb.WriteString("semanticTags [], aiAnnotations {objectsDetected [], ocrText, language, explanationGenerated}, ")
	sb.WriteString("relations {explains [], referencedBy []}. Respond with JSON only.\n")
	fmt.Fprintf(&sb, "id: %s\nfilename: %s\npage: %d\n", ic.ID, ic.Filename, ic.Page)
	if ic.Section != "" {
		fmt.Fprintf(&sb, "documentSection: %s\n", ic.Section)
	}
	if ic.Caption != "" {
		fmt.Fprintf(&sb, "caption: %s\n", ic.Caption)
	}
	if !ic.Location.IsEmpty() {
		fmt.Fprintf(&sb, "location: x=%.0f y=%.0f width=%.0f height=%.0f\n",
			ic.Location.X, ic.Location.Y, ic.Location.Width, ic.Location.Height)
	}
	return sb.String()
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
