package paramstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	calls  int
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func tokenOutput(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/gift-concierge/backend-token"), Value: strPtr(v), Type: types.ParameterTypeSecureString,
	}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: tokenOutput(`{"token":"t"}`)}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), " /gift-concierge/backend-token ")
	require.NoError(t, err)
	require.Equal(t, `{"token":"t"}`, v)
	require.Equal(t, "/gift-concierge/backend-token", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameter_CachesWithinTTL(t *testing.T) {
	api := &fakeAPI{getOut: tokenOutput("v1")}
	client, err := New(api, WithCacheTTL(time.Minute))
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	_, err = client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, 1, api.calls)

	now = now.Add(2 * time.Minute)
	api.getOut = tokenOutput("v2")
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v2", v)
	require.Equal(t, 2, api.calls)
}

func TestGetParameter_CacheDisabled(t *testing.T) {
	api := &fakeAPI{getOut: tokenOutput("v")}
	client, err := New(api, WithCacheTTL(0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = client.GetParameter(context.Background(), "p")
		require.NoError(t, err)
	}
	require.Equal(t, 3, api.calls)
}

func TestGetParameter_ErrorsAreNotCached(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("throttled")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "throttled")

	api.getErr = nil
	api.getOut = tokenOutput("v")
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}
