package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicare/callsdk/internal/domain"
)

type wireEnv struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialLeg(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/signal?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnv(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: payload}
	require.NoError(t, conn.WriteJSON(env))
}

func readEnv(t *testing.T, conn *websocket.Conn) wireEnv {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env wireEnv
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestSessionEndpoint(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{
		"callerId": "a", "calleeId": "b", "checkSum": "sum",
	})
	resp, err := http.Post(ts.URL+"/api/sdk-call/one2one", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grant domain.SessionGrant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grant))
	assert.NotEmpty(t, grant.Token)
	assert.True(t, strings.HasSuffix(grant.Server, "/ws/signal"), grant.Server)

	// Each grant carries its own token.
	resp2, err := http.Post(ts.URL+"/api/sdk-call/one2one", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()
	var grant2 domain.SessionGrant
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&grant2))
	assert.NotEqual(t, grant.Token, grant2.Token)
}

func TestSignalRequiresToken(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws/signal")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInitCallFansOut(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	caller := dialLeg(t, ts, "caller-token")
	callee := dialLeg(t, ts, "callee-token")

	sendEnv(t, caller, domain.EventInitCall, domain.InitCallPayload{
		IsCaller: true,
		SDP:      domain.SessionDescription{Type: "offer", SDP: "v=0 caller"},
	})

	// The callee leg receives the offer stripped to SDP_OFFER form.
	env := readEnv(t, callee)
	assert.Equal(t, domain.EventSDPOffer, env.Event)
	var offer domain.SDPPayload
	require.NoError(t, json.Unmarshal(env.Data, &offer))
	assert.Equal(t, "v=0 caller", offer.SDP)

	// The caller leg hears ringing.
	assert.Equal(t, domain.EventRinging, readEnv(t, caller).Event)
}

func TestAnswerRelayedWithAccepted(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	caller := dialLeg(t, ts, "caller-token")
	callee := dialLeg(t, ts, "callee-token")

	sendEnv(t, callee, domain.EventSDPAnswer, domain.SDPPayload{SDP: "v=0 callee"})

	env := readEnv(t, caller)
	assert.Equal(t, domain.EventSDPAnswer, env.Event)
	var answer domain.SDPPayload
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.Equal(t, "v=0 callee", answer.SDP)

	assert.Equal(t, domain.EventAccepted, readEnv(t, caller).Event)
}

func TestCandidatesRelayedVerbatim(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	caller := dialLeg(t, ts, "caller-token")
	callee := dialLeg(t, ts, "callee-token")

	sendEnv(t, caller, domain.EventICECandidate, domain.CandidatePayload{Candidate: "cand-1", SDPMid: "0"})

	env := readEnv(t, callee)
	assert.Equal(t, domain.EventICECandidate, env.Event)
	var cand domain.CandidatePayload
	require.NoError(t, json.Unmarshal(env.Data, &cand))
	assert.Equal(t, "cand-1", cand.Candidate)
}

func TestPeerDropBecomesHangup(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()

	caller := dialLeg(t, ts, "caller-token")
	callee := dialLeg(t, ts, "callee-token")

	require.NoError(t, callee.Close())

	assert.Equal(t, domain.EventHangup, readEnv(t, caller).Event)
}
