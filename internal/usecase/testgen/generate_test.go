package testgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/worker/internal/domain/suite"
)

type stubGenerator struct {
	raw        suite.RawSuite
	err        error
	gotContext string
}

func (g *stubGenerator) Generate(_ context.Context, _ suite.GenerationRequest, contextCode string) (suite.RawSuite, error) {
	g.gotContext = contextCode
	return g.raw, g.err
}

func (g *stubGenerator) Close() error { return nil }

type stubRepo struct {
	saved *suite.TestSuite
	err   error
}

func (r *stubRepo) SaveSuite(_ context.Context, s *suite.TestSuite) error {
	r.saved = s
	return r.err
}
func (r *stubRepo) GetSuite(context.Context, string) (*suite.TestSuite, error) { return nil, nil }
func (r *stubRepo) ListSuites(context.Context, int) ([]suite.TestSuite, error) { return nil, nil }
func (r *stubRepo) DeleteSuite(context.Context, string) error                  { return nil }

type stubFetcher struct {
	content string
	err     error
}

func (f *stubFetcher) GetFileContent(context.Context, suite.SourceRef) (string, error) {
	return f.content, f.err
}

func TestService_Generate(t *testing.T) {
	gen := &stubGenerator{raw: completeRaw()}
	repo := &stubRepo{}
	svc := NewService(gen, &Parser{}, WithRepository(repo))

	got, err := svc.Generate(context.Background(), parseRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalCases)
	require.NotNil(t, repo.saved)
	assert.Equal(t, got.ID, repo.saved.ID)
}

func TestService_Generate_InvalidRequest(t *testing.T) {
	svc := NewService(&stubGenerator{}, &Parser{})

	_, err := svc.Generate(context.Background(), suite.GenerationRequest{UserStory: "short"})
	assert.ErrorIs(t, err, suite.ErrInvalidInput)
}

func TestService_Generate_BackendFailure(t *testing.T) {
	gen := &stubGenerator{err: suite.ErrGenerationFailed}
	svc := NewService(gen, &Parser{})

	_, err := svc.Generate(context.Background(), parseRequest())
	assert.ErrorIs(t, err, suite.ErrGenerationFailed)
}

func TestService_Generate_FetchesSourceContext(t *testing.T) {
	gen := &stubGenerator{raw: completeRaw()}
	svc := NewService(gen, &Parser{}, WithContextFetcher(&stubFetcher{content: "def login(): pass"}))

	req := parseRequest()
	req.Source = &suite.SourceRef{Repo: "acme/app", FilePath: "auth.py"}

	_, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "def login(): pass", gen.gotContext)
}

func TestService_Generate_ContextFetchFailureIsNonFatal(t *testing.T) {
	gen := &stubGenerator{raw: completeRaw()}
	svc := NewService(gen, &Parser{}, WithContextFetcher(&stubFetcher{err: suite.ErrContextNotFound}))

	req := parseRequest()
	req.Source = &suite.SourceRef{Repo: "acme/app", FilePath: "gone.py"}

	got, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "", gen.gotContext)
	assert.Equal(t, 3, got.TotalCases)
}

func TestService_Generate_PrefetchedContextWins(t *testing.T) {
	gen := &stubGenerator{raw: completeRaw()}
	fetcher := &stubFetcher{content: "fetched"}
	svc := NewService(gen, &Parser{}, WithContextFetcher(fetcher))

	req := parseRequest()
	req.ContextCode = "inline"
	req.Source = &suite.SourceRef{Repo: "acme/app", FilePath: "auth.py"}

	_, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "inline", gen.gotContext)
}

func TestService_Generate_DeduplicatesGapFilledBatch(t *testing.T) {
	// A gap-fill turn appends its cases to the raw batch before parsing, so
	// a gap-fill case that duplicates an original must be screened out.
	raw := completeRaw()
	cases := raw["test_cases"].([]any)
	duplicate := map[string]any{
		"title":         "Rejected login with an incorrect password",
		"scenario_type": "negative",
		"steps": []any{
			map[string]any{"step_number": float64(1), "action": "enter wrong password", "expected_result": "ok"},
		},
	}
	raw["test_cases"] = append(cases, duplicate)

	svc := NewService(&stubGenerator{raw: raw}, &Parser{})
	got, err := svc.Generate(context.Background(), parseRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalCases)
	assert.Equal(t, 1, got.Breakdown[suite.ScenarioNegative])
}

func TestService_Generate_SaveFailure(t *testing.T) {
	gen := &stubGenerator{raw: completeRaw()}
	repo := &stubRepo{err: errors.New("connection refused")}
	svc := NewService(gen, &Parser{}, WithRepository(repo))

	_, err := svc.Generate(context.Background(), parseRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save suite")
}
