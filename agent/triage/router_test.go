package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/bancoagil/agent/agent/contract"
	statex "github.com/bancoagil/agent/agent/state"
	toolx "github.com/bancoagil/agent/agent/tool"
)

type stubClassifier struct {
	label contractx.Label
	err   error
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.Label, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.label, nil
}

type stubResponder struct {
	resp  contractx.ResponderResponse
	err   error
	calls int
}

func (s *stubResponder) Respond(ctx context.Context, req contractx.ResponderRequest) (contractx.ResponderResponse, error) {
	s.calls++
	if s.err != nil {
		return contractx.ResponderResponse{}, s.err
	}
	return s.resp, nil
}

type stubRegistry struct {
	classifier *stubClassifier
	identify   *stubResponder
	validate   *stubResponder
	credit     *stubResponder
	exchange   *stubResponder
	interview  *stubResponder
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		classifier: &stubClassifier{label: contractx.LabelCredit},
		identify:   &stubResponder{resp: contractx.ResponderResponse{Message: "Me informe seu CPF, por favor."}},
		validate:   &stubResponder{resp: contractx.ResponderResponse{Message: "Validando seus dados."}},
		credit:     &stubResponder{},
		exchange:   &stubResponder{},
		interview:  &stubResponder{},
	}
}

func (s *stubRegistry) Classifier() contractx.Classifier { return s.classifier }
func (s *stubRegistry) Identify() contractx.Responder    { return s.identify }
func (s *stubRegistry) Validate() contractx.Responder    { return s.validate }
func (s *stubRegistry) Credit() contractx.Responder      { return s.credit }
func (s *stubRegistry) Exchange() contractx.Responder    { return s.exchange }
func (s *stubRegistry) Interview() contractx.Responder   { return s.interview }

func newTestRouter(t *testing.T, registry contractx.Registry) *Router {
	t.Helper()
	r, err := NewRouter(registry, Config{OracleTimeout: time.Second, OracleRetries: 1})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return r
}

func authedState(id string) *statex.SessionState {
	st := statex.NewSessionState(id, time.Now())
	st.Authenticated = true
	st.CustomerID = "12345678900"
	st.LastHandler = contractx.HandlerTriage
	return st
}

func TestRouteLogoutWinsOverEverything(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	router := newTestRouter(t, registry)

	st := authedState("s1")
	st.LastHandler = contractx.HandlerInterview
	st.FailedAttempts = 2
	st.AppendUser("quero sair agora")

	dec, err := router.Route(context.Background(), st, "quero sair agora")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !dec.Reset || dec.Reply != FarewellMessage {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if st.Authenticated || st.FailedAttempts != 0 || st.LastHandler != "" {
		t.Fatalf("expected reset state, got %+v", st)
	}
	if registry.classifier.calls != 0 || registry.interview.calls != 0 {
		t.Fatal("logout must not reach any oracle")
	}
}

func TestRouteStickyInterview(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	router := newTestRouter(t, registry)

	st := authedState("s2")
	st.LastHandler = contractx.HandlerInterview
	st.AppendAssistant("Quantos dependentes você tem?")
	st.AppendUser("2")

	dec, err := router.Route(context.Background(), st, "2")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Next != contractx.HandlerInterview {
		t.Fatalf("expected interview affinity, got %+v", dec)
	}
	if registry.classifier.calls != 0 {
		t.Fatal("sticky turn must not classify")
	}
}

func TestRouteInterviewCompletionReleases(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	router := newTestRouter(t, registry)

	st := authedState("s3")
	st.LastHandler = contractx.HandlerInterview
	st.AppendAssistant("Score atualizado. REDIRECIONANDO para o crédito.")
	st.AppendUser("ok")

	dec, err := router.Route(context.Background(), st, "ok")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Next != contractx.HandlerCredit {
		t.Fatalf("expected release to credit, got %+v", dec)
	}
}

func TestRouteAuthGateDigitCounting(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	router := newTestRouter(t, registry)

	st := statex.NewSessionState("s4", time.Now())
	st.AppendUser("oi, sou o cliente 12")

	// Two digits stay conversational.
	dec, err := router.Route(context.Background(), st, "oi, sou o cliente 12")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Reply == "" || registry.identify.calls != 1 || registry.validate.calls != 0 {
		t.Fatalf("expected identify persona, got %+v", dec)
	}

	st.AppendAssistant(dec.Reply)
	st.AppendUser("123.456.789-00, 1990-01-01")

	dec, err = router.Route(context.Background(), st, "123.456.789-00, 1990-01-01")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if registry.validate.calls != 1 {
		t.Fatalf("expected validate persona for digit-heavy turn, got %+v", dec)
	}
	if st.LastHandler != contractx.HandlerTriage {
		t.Fatalf("expected triage affinity, got %s", st.LastHandler)
	}
}

func TestRouteValidateToolRequestPassesThrough(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.validate = &stubResponder{resp: contractx.ResponderResponse{
		ToolRequests: []contractx.ToolRequest{{
			Tool: toolx.ToolValidateIdentity,
			Args: map[string]any{"id": "12345678900", "birth_date": "1990-01-01"},
		}},
	}}
	router := newTestRouter(t, registry)

	st := statex.NewSessionState("s5", time.Now())
	st.AppendUser("12345678900 1990-01-01")

	dec, err := router.Route(context.Background(), st, "12345678900 1990-01-01")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(dec.ToolRequests) != 1 || dec.ToolRequests[0].Tool != toolx.ToolValidateIdentity {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestRouteIdentityToolReturnAnswersDirectly(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.validate = &stubResponder{resp: contractx.ResponderResponse{
		Message: "Autenticado com sucesso! Posso ajudar com crédito, câmbio ou entrevista.",
	}}
	router := newTestRouter(t, registry)

	st := authedState("s6")
	st.AppendUser("12345678900 1990-01-01")
	st.AppendToolResult(toolx.ToolValidateIdentity, `{"success":true}`)

	dec, err := router.Route(context.Background(), st, "12345678900 1990-01-01")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Reply == "" {
		t.Fatalf("expected direct reply after tool return, got %+v", dec)
	}
	if registry.classifier.calls != 0 {
		t.Fatal("tool return must not classify the digits message")
	}
}

func TestRouteLockout(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	router := newTestRouter(t, registry)

	st := statex.NewSessionState("s7", time.Now())
	st.FailedAttempts = 3
	st.AppendUser("12345678900 1990-01-01")

	dec, err := router.Route(context.Background(), st, "12345678900 1990-01-01")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Reply != LockedMessage {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if registry.identify.calls != 0 || registry.validate.calls != 0 {
		t.Fatal("lockout must not reach the oracles")
	}
}

func TestRouteClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label contractx.Label
		want  contractx.HandlerType
	}{
		{contractx.LabelExchange, contractx.HandlerExchange},
		{contractx.LabelInterview, contractx.HandlerInterview},
		{contractx.LabelCredit, contractx.HandlerCredit},
		{"???", contractx.HandlerCredit},
	}

	for _, tc := range cases {
		registry := newStubRegistry()
		registry.classifier = &stubClassifier{label: tc.label}
		router := newTestRouter(t, registry)

		st := authedState("s8")
		st.AppendUser("mensagem qualquer")

		dec, err := router.Route(context.Background(), st, "mensagem qualquer")
		if err != nil {
			t.Fatalf("Route(label=%s) error = %v", tc.label, err)
		}
		if dec.Next != tc.want {
			t.Fatalf("label %s routed to %s, want %s", tc.label, dec.Next, tc.want)
		}
		if st.NextHandler != tc.want {
			t.Fatalf("state next handler = %s, want %s", st.NextHandler, tc.want)
		}
	}
}

func TestRouteClassifierFailureDefaultsToCredit(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.classifier = &stubClassifier{err: errors.New("model timeout")}
	router := newTestRouter(t, registry)

	st := authedState("s9")
	st.AppendUser("qualquer coisa")

	dec, err := router.Route(context.Background(), st, "qualquer coisa")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if dec.Next != contractx.HandlerCredit {
		t.Fatalf("expected credit default, got %+v", dec)
	}
	if registry.classifier.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", registry.classifier.calls)
	}
}

func TestRouteResponderFailureSurfacesOracleError(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.identify = &stubResponder{err: errors.New("upstream 502")}
	router := newTestRouter(t, registry)

	st := statex.NewSessionState("s10", time.Now())
	st.AppendUser("oi")

	_, err := router.Route(context.Background(), st, "oi")
	if !errors.Is(err, contractx.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}
