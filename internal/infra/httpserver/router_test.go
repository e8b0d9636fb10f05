package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukhanin/contract-advisor/internal/application"
	appadvisor "github.com/dukhanin/contract-advisor/internal/application/advisor"
	appdocs "github.com/dukhanin/contract-advisor/internal/application/documents"
	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	domdocs "github.com/dukhanin/contract-advisor/internal/domain/documents"
	"github.com/dukhanin/contract-advisor/internal/infra/index"
	"github.com/dukhanin/contract-advisor/internal/infra/parser"
	"github.com/dukhanin/contract-advisor/internal/infra/segmenter"
)

type scriptLLM struct {
	replies []string
}

func (s *scriptLLM) Complete(ctx context.Context, req domai.CompletionRequest) (string, error) {
	if len(s.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	out := s.replies[0]
	s.replies = s.replies[1:]
	return out, nil
}

func (s *scriptLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type runeCounter struct{}

func (runeCounter) Count(text string) int { return len([]rune(text)) }

func (runeCounter) Truncate(text string, maxTokens int) string {
	r := []rune(text)
	if len(r) <= maxTokens {
		return text
	}
	return string(r[:maxTokens])
}

func newServer(t *testing.T, llm *scriptLLM) *httptest.Server {
	t.Helper()
	clock := application.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	docsSvc := &appdocs.Service{
		Parser:    parser.New(),
		Segmenter: segmenter.Default(),
		NewIndex:  func() domdocs.Index { return index.NewMemory(llm) },
		LLM:       llm,
		Tokens:    runeCounter{},
		Clock:     clock,
	}
	advisorSvc := appadvisor.New(docsSvc, llm, clock)

	srv := httptest.NewServer(NewRouter(docsSvc, advisorSvc, Options{}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postMultipart(t *testing.T, url, field string, files map[string][]byte, extra map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(url, w.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestChatEndpoint(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "", "fields": {}}`,
		"Hello! What document do you need?",
	}}
	srv := newServer(t, llm)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reply string `json:"reply"`
		State string `json:"state"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Hello! What document do you need?", body.Reply)
	assert.Equal(t, "gathering", body.State)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRejectsBadUserID(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postJSON(t, srv.URL+"/api/chat?user_id=bad%20user!", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadBatchStatuses(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postMultipart(t, srv.URL+"/api/documents/upload", "files", map[string][]byte{
		"lease.txt":   []byte("rent: 1000 monthly"),
		"broken.docx": []byte("PK\x03\x04 not a zip"),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Files []struct {
			Filename string `json:"filename"`
			Status   string `json:"status"`
		} `json:"files"`
		State string `json:"state"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Files, 2)

	statuses := map[string]string{}
	for _, f := range body.Files {
		statuses[f.Filename] = f.Status
	}
	assert.Equal(t, "processed", statuses["lease.txt"])
	assert.Equal(t, "failed", statuses["broken.docx"])
	assert.Equal(t, "gathering", body.State)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postMultipart(t, srv.URL+"/api/documents/upload", "files", map[string][]byte{
		"image.png": []byte("\x89PNG fake"),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRequiresFiles(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postMultipart(t, srv.URL+"/api/documents/upload", "files", nil, map[string]string{"note": "no files"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeEndpoint(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"risks": [{"severity": "high", "description": "No liability cap.", "mitigation": "Add one."}], "summary": "A risky agreement."}`,
	}}
	srv := newServer(t, llm)

	resp := postMultipart(t, srv.URL+"/api/document/analyze", "file", map[string][]byte{
		"contract.txt": []byte("the contractor is liable without limit"),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Summary string `json:"summary"`
		Risks   []struct {
			Severity string `json:"severity"`
		} `json:"risks"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "A risky agreement.", body.Summary)
	require.Len(t, body.Risks, 1)
	assert.Equal(t, "high", body.Risks[0].Severity)
}

func TestAnalyzeMalformedModelOutput(t *testing.T) {
	llm := &scriptLLM{replies: []string{"looks fine to me"}}
	srv := newServer(t, llm)

	resp := postMultipart(t, srv.URL+"/api/document/analyze", "file", map[string][]byte{
		"contract.txt": []byte("some text"),
	}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestQAEndpoint(t *testing.T) {
	llm := &scriptLLM{replies: []string{"The rent is 1000."}}
	srv := newServer(t, llm)

	resp := postMultipart(t, srv.URL+"/api/document/qa", "file", map[string][]byte{
		"lease.txt": []byte("rent: 1000 monthly, utilities included"),
	}, map[string]string{"questions": `["what is the rent?"]`})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Answers []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"answers"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Answers, 1)
	assert.Equal(t, "The rent is 1000.", body.Answers[0].Answer)
}

func TestQARequiresQuestions(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postMultipart(t, srv.URL+"/api/document/qa", "file", map[string][]byte{
		"lease.txt": []byte("text"),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatQAOverUploadedDocuments(t *testing.T) {
	llm := &scriptLLM{replies: []string{"The rent is 1000."}}
	srv := newServer(t, llm)

	up := postMultipart(t, srv.URL+"/api/documents/upload", "files", map[string][]byte{
		"lease.txt": []byte("rent: 1000 monthly, utilities included"),
	}, nil)
	require.Equal(t, http.StatusOK, up.StatusCode)

	resp := postJSON(t, srv.URL+"/api/chat/qa", map[string]string{"question": "what is the rent?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "The rent is 1000.", body["answer"])
}

func TestChatQAWithoutSession(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp := postJSON(t, srv.URL+"/api/chat/qa", map[string]string{"question": "anything"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecommendationsBeforeReady(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp, err := http.Get(srv.URL + "/api/recommendations")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestClearEndpoint(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "", "fields": {}}`,
		"Hello.",
	}}
	srv := newServer(t, llm)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/user/data", nil)
	require.NoError(t, err)
	clearResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer clearResp.Body.Close()
	require.Equal(t, http.StatusOK, clearResp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(clearResp.Body).Decode(&body))
	assert.Equal(t, "cleared", body["status"])
	assert.Equal(t, DefaultUserID, body["user_id"])
}

func TestHealthEndpoints(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAnalysisListWithoutAudit(t *testing.T) {
	srv := newServer(t, &scriptLLM{})

	resp, err := http.Get(srv.URL + "/api/document/analyses")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)
}
