package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoExtractor_HTML(t *testing.T) {
	html := `<html>
	<head><title>Ignored title</title><style>body { color: red }</style></head>
	<body>
		<h1>Heading</h1>
		<p>First   paragraph.</p>
		<script>var x = 1;</script>
		<ul>
			<li>Item one</li>
			<li><p>Item two</p></li>
		</ul>
	</body>
	</html>`

	ext := NewAutoExtractor(Options{})
	got, err := ext.Extract(context.Background(), &Raw{Locator: "https://example.com", ContentType: "text/html; charset=utf-8", Data: []byte(html)})
	require.NoError(t, err)

	assert.Equal(t, []string{"Heading", "First   paragraph.", "Item one", "Item two"}, got.Elements)
	assert.Equal(t, "Heading\nFirst   paragraph.\nItem one\nItem two", got.Text())
	assert.Equal(t, "Heading First paragraph. Item one Item two", Normalize(got.Text()))
}

func TestAutoExtractor_HTMLLooseDiv(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	got, err := ext.Extract(context.Background(), &Raw{ContentType: "text/html", Data: []byte(`<html><body><div>Only a div</div></body></html>`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Only a div"}, got.Elements)
}

func TestAutoExtractor_HTMLNestedBlocksKeepOwnText(t *testing.T) {
	html := `<ul><li>Parent item<ul><li>child</li></ul></li></ul>` +
		`<blockquote>Quoted lead<p>inner</p></blockquote>` +
		`<div>Loose intro</div><p>para with <a href="/x">a link</a> inline</p>` +
		`<section>Before<br>after break</section>`

	ext := NewAutoExtractor(Options{})
	got, err := ext.Extract(context.Background(), &Raw{ContentType: "text/html", Data: []byte(html)})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Parent item",
		"child",
		"Quoted lead",
		"inner",
		"Loose intro",
		"para with a link inline",
		"Before\nafter break",
	}, got.Elements)
	assert.Equal(t, "Parent item child Quoted lead inner Loose intro para with a link inline Before after break", Normalize(got.Text()))
}

func TestAutoExtractor_HTMLEmpty(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	_, err := ext.Extract(context.Background(), &Raw{Locator: "https://example.com/empty", ContentType: "text/html", Data: []byte(`<html><body><script>x()</script></body></html>`)})
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "https://example.com/empty", extErr.Locator)
}

func TestAutoExtractor_Readability(t *testing.T) {
	para := strings.Repeat("MinIO is a high performance object store that speaks the S3 protocol. ", 12)
	html := `<html><head><title>Article</title></head><body>
		<nav><a href="/">Home</a><a href="/blog">Blog</a></nav>
		<article><h1>Object storage</h1><p>` + para + `</p><p>` + para + `</p></article>
		<footer>Copyright footer</footer>
	</body></html>`

	ext := NewAutoExtractor(Options{Readability: true})
	got, err := ext.Extract(context.Background(), &Raw{Locator: "https://blog.example.com/post", ContentType: "text/html", Data: []byte(html)})
	require.NoError(t, err)
	assert.Contains(t, got.Text(), "high performance object store")
}

func TestAutoExtractor_PlainText(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	got, err := ext.Extract(context.Background(), &Raw{ContentType: "text/plain", Data: []byte("\ufeffFirst line\nstill first\n\n  \nSecond\n")})
	require.NoError(t, err)
	assert.Equal(t, []string{"First line\nstill first", "Second"}, got.Elements)
}

func TestAutoExtractor_SniffsMissingContentType(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	got, err := ext.Extract(context.Background(), &Raw{Data: []byte(`<!DOCTYPE html><html><body><p>Sniffed</p></body></html>`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sniffed"}, got.Elements)
}

func TestAutoExtractor_Unsupported(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	_, err := ext.Extract(context.Background(), &Raw{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "image/png", extErr.ContentType)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestAutoExtractor_MalformedPDF(t *testing.T) {
	ext := NewAutoExtractor(Options{})
	_, err := ext.Extract(context.Background(), &Raw{ContentType: "application/pdf", Data: []byte("%PDF-1.4 definitely not a pdf")})

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "application/pdf", extErr.ContentType)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/html", MediaType("Text/HTML; charset=UTF-8", nil))
	assert.Equal(t, "application/pdf", MediaType("application/pdf", nil))
	assert.Equal(t, "text/plain", MediaType("", []byte("hello world")))
	assert.Equal(t, "application/pdf", MediaType("application/octet-stream", []byte("%PDF-1.7\n")))
}

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceURL, DetectSource("https://example.com"))
	assert.Equal(t, SourceURL, DetectSource("HTTP://EXAMPLE.COM"))
	assert.Equal(t, SourceFile, DetectSource("./docs/readme.md"))
	assert.Equal(t, SourceFile, DetectSource("file:///tmp/a.html"))
}
