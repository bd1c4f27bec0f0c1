package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/config"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/server"
)

func testApp(t *testing.T, dir string) *app {
	t.Helper()
	return &app{
		importPaths: []string{dir},
		cfg:         config.Default(),
		logger:      observability.NewNopLogger(),
	}
}

func TestServe_Handler(t *testing.T) {
	dir := protoTree(t, map[string]string{"acme/v1/user.proto": userProto})
	a := testApp(t, dir)

	sc := a.cfg.Server
	sc.RateLimit = 2
	handler, closeFn, err := a.newServer(context.Background(), nil, sc)
	require.NoError(t, err)
	defer closeFn()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/validate/acme.v1.User", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"id": "u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp server.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)

	var ids []string
	for _, v := range resp.Violations {
		ids = append(ids, v.RuleID)
	}
	assert.ElementsMatch(t, []string{"string.min_len", "user.name_or_email"}, ids)

	assert.Equal(t, http.StatusOK, post(`{"id": "u-1", "name": "Gopher"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(`{}`).Code)
}

func TestServe_RedisUnavailable(t *testing.T) {
	dir := protoTree(t, map[string]string{"acme/v1/user.proto": userProto})
	a := testApp(t, dir)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	sc := a.cfg.Server
	sc.RateLimit = 10
	sc.RedisAddr = addr
	_, _, err := a.newServer(context.Background(), nil, sc)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestServe_Redis(t *testing.T) {
	dir := protoTree(t, map[string]string{"acme/v1/user.proto": userProto})
	a := testApp(t, dir)
	mr := miniredis.RunT(t)

	sc := a.cfg.Server
	sc.RateLimit = 1
	sc.RedisAddr = mr.Addr()
	handler, closeFn, err := a.newServer(context.Background(), nil, sc)
	require.NoError(t, err)
	defer closeFn()

	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/types", nil))
		assert.Equal(t, want, rec.Code)
	}
	assert.NotEmpty(t, mr.Keys())
}

func TestServeCommand(t *testing.T) {
	dir := protoTree(t, map[string]string{"acme/v1/user.proto": userProto})
	t.Setenv("PROTOGUARD_CONFIG", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	cmd := NewRootCommand()
	cmd.SetOut(pw)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "-I", dir, "--addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
		_ = pw.Close()
	}()

	line, err := bufio.NewReader(pr).ReadString('\n')
	require.NoError(t, err)
	addr := strings.TrimSpace(strings.TrimPrefix(line, "listening on "))

	resp, err := http.Get("http://" + addr + "/v1/types")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "acme.v1.User")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
