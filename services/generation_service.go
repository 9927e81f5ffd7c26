package services

import (
	"bytes"
	"context"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/techagentng/collabhub/config"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/metrics"
)

const websiteSystemPrompt = "You are a web developer. Generate modern, responsive HTML and CSS code for a business website based on the given prompt. Include proper semantic HTML5 elements and modern CSS practices."

var (
	htmlBlock = regexp.MustCompile("(?s)```html\n(.*?)```")
	cssBlock  = regexp.MustCompile("(?s)```css\n(.*?)```")
)

// ImageGenerator is the image half of the OpenAI client.
type ImageGenerator interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// ChatCompleter is the chat half of the OpenAI client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type WebsiteCode struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
}

type GenerationService interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	GenerateWebsiteCode(ctx context.Context, prompt string) (*WebsiteCode, error)
}

type generationService struct {
	Config  *config.Config
	images  ImageGenerator
	website ChatCompleter
	media   MediaService
}

// NewGenerationService builds the generation collaborator. media may be nil, in
// which case image URLs are returned as the provider serves them.
func NewGenerationService(images ImageGenerator, website ChatCompleter, media MediaService, conf *config.Config) GenerationService {
	return &generationService{
		Config:  conf,
		images:  images,
		website: website,
		media:   media,
	}
}

func (g *generationService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errs.ErrPromptRequired
	}
	resp, err := g.images.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrGenerationFailed, "Failed to generate image: %v", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errs.Wrap(errs.ErrGenerationFailed, "Failed to generate image: empty response")
	}

	url := resp.Data[0].URL
	if g.media == nil {
		return url, nil
	}
	mirrored, err := g.media.MirrorURL(ctx, url)
	if err != nil {
		// provider URLs expire but still work for a while
		log.Warn().Err(err).Msg("could not mirror generated image, returning provider url")
		return url, nil
	}
	return mirrored, nil
}

func (g *generationService) GenerateWebsiteCode(ctx context.Context, prompt string) (*WebsiteCode, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errs.ErrPromptRequired
	}
	resp, err := g.website.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: websiteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Create a website for: " + prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		log.Warn().Err(err).Msg("website generation failed, serving the default template")
		metrics.GenerationFallbacks.Inc()
		return ParseWebsiteCode("", prompt)
	}
	if len(resp.Choices) == 0 {
		log.Warn().Msg("website generation returned no choices, serving the default template")
		metrics.GenerationFallbacks.Inc()
		return ParseWebsiteCode("", prompt)
	}
	return ParseWebsiteCode(resp.Choices[0].Message.Content, prompt)
}

// ParseWebsiteCode extracts the fenced html and css blocks from generated, using
// the default templates for whichever is missing.
func ParseWebsiteCode(generated, prompt string) (*WebsiteCode, error) {
	code := &WebsiteCode{CSS: DefaultCSS}
	if m := cssBlock.FindStringSubmatch(generated); m != nil {
		code.CSS = m[1]
	}
	if m := htmlBlock.FindStringSubmatch(generated); m != nil {
		code.HTML = m[1]
		return code, nil
	}
	html, err := DefaultHTML(prompt, time.Now().Year())
	if err != nil {
		return nil, err
	}
	code.HTML = html
	return code, nil
}

var defaultHTML = template.Must(template.New("site").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Prompt}}</title>
    <link rel="stylesheet" href="styles.css">
</head>
<body>
    <header>
        <nav class="main-nav">
            <div class="logo">{{.Prompt}}</div>
            <ul class="nav-links">
                <li><a href="#home">Home</a></li>
                <li><a href="#about">About</a></li>
                <li><a href="#contact">Contact</a></li>
            </ul>
        </nav>
    </header>
    <main>
        <section id="hero">
            <h1>{{.Prompt}}</h1>
            <p>Welcome to our business website</p>
        </section>
    </main>
    <footer>
        <p>&copy; {{.Year}} {{.Prompt}}. All rights reserved.</p>
    </footer>
</body>
</html>`))

// DefaultHTML renders the fallback page for prompt.
func DefaultHTML(prompt string, year int) (string, error) {
	var buf bytes.Buffer
	err := defaultHTML.Execute(&buf, struct {
		Prompt string
		Year   int
	}{prompt, year})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultCSS is the fallback stylesheet.
const DefaultCSS = `/* Modern CSS Reset */
*, *::before, *::after {
    box-sizing: border-box;
    margin: 0;
    padding: 0;
}

/* Variables */
:root {
    --primary-color: #007bff;
    --secondary-color: #6c757d;
    --background-color: #f8f9fa;
    --text-color: #212529;
}

body {
    font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
    line-height: 1.6;
    color: var(--text-color);
    background-color: var(--background-color);
}

/* Navigation */
.main-nav {
    display: flex;
    justify-content: space-between;
    align-items: center;
    padding: 1rem 2rem;
    background-color: white;
    box-shadow: 0 2px 4px rgba(0,0,0,0.1);
}

.logo {
    font-size: 1.5rem;
    font-weight: bold;
    color: var(--primary-color);
}

.nav-links {
    display: flex;
    gap: 2rem;
    list-style: none;
}

.nav-links a {
    text-decoration: none;
    color: var(--text-color);
    transition: color 0.3s ease;
}

.nav-links a:hover {
    color: var(--primary-color);
}

/* Hero Section */
#hero {
    text-align: center;
    padding: 4rem 2rem;
    background-color: var(--primary-color);
    color: white;
}

#hero h1 {
    font-size: 2.5rem;
    margin-bottom: 1rem;
}

/* Footer */
footer {
    text-align: center;
    padding: 2rem;
    background-color: var(--secondary-color);
    color: white;
}

/* Responsive Design */
@media (max-width: 768px) {
    .main-nav {
        flex-direction: column;
        gap: 1rem;
    }

    .nav-links {
        flex-direction: column;
        align-items: center;
        gap: 1rem;
    }
}`
