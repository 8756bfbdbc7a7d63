package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/planhub/planhub/internal/app/activity"
	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/platform/metrics"
	"github.com/planhub/planhub/internal/realtime"
	"github.com/planhub/planhub/internal/wizard"
)

type config struct {
	PlanAPIBase             string
	StreamerBase            string
	Users                   int
	SetupConcurrency        int
	StartupWait             time.Duration
	Duration                time.Duration
	RampUp                  time.Duration
	ActionsPerUserPerSecond float64
	RequestTimeout          time.Duration
	MetricsAddr             string
	Password                string
	EnableWebsocket         bool
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

type idResponse struct {
	ID string `json:"id"`
}

type wizardResponse struct {
	ID string `json:"id"`
}

type simulatedUser struct {
	Index       int
	Username    string
	Password    string
	AccessToken string
	UserID      string
	OrgID       string
	WorkspaceID string

	mu    sync.Mutex
	plans []string
	feed  activity.Feed
}

type runner struct {
	cfg       config
	runID     string
	apiClient *http.Client

	requestsSuccess atomic.Int64
	requestsError   atomic.Int64
	activeVUs       atomic.Int64
	activeChannels  atomic.Int64
	feedFrames      atomic.Int64
}

var (
	requestsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "planhub_loadgen_requests_total",
		Help: "Total HTTP requests sent by load generator.",
	}, []string{"endpoint", "method", "status", "outcome"})

	actionsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "planhub_loadgen_actions_total",
		Help: "User actions executed by load generator.",
	}, []string{"action", "outcome"})

	framesTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "planhub_loadgen_frames_total",
		Help: "Websocket frames received by load-generated users.",
	}, []string{"action"})

	virtualUsersGauge = metrics.NewGauge(metrics.Opts{
		Name: "planhub_loadgen_virtual_users",
		Help: "Current number of active virtual users sending actions.",
	})

	channelsGauge = metrics.NewGauge(metrics.Opts{
		Name: "planhub_loadgen_ws_channels",
		Help: "Current number of load-generated users with a running websocket channel.",
	})
)

func init() {
	metrics.Default.MustRegister(requestsTotal, actionsTotal, framesTotal, virtualUsersGauge, channelsGauge)
}

func main() {
	cfg := loadConfig()
	if cfg.Users <= 0 {
		log.Fatal("LOADGEN_USERS must be > 0")
	}
	if cfg.SetupConcurrency <= 0 {
		log.Fatal("LOADGEN_SETUP_CONCURRENCY must be > 0")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx := baseCtx
	if cfg.Duration > 0 {
		timeoutCtx, cancel := context.WithTimeout(baseCtx, cfg.Duration)
		defer cancel()
		ctx = timeoutCtx
	}

	go runMetricsServer(cfg.MetricsAddr)

	transport := &http.Transport{
		MaxIdleConns:        cfg.Users * 4,
		MaxIdleConnsPerHost: cfg.Users * 4,
		IdleConnTimeout:     90 * time.Second,
	}

	r := &runner{
		cfg:   cfg,
		runID: strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
		apiClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
	}

	if err := r.waitForDependencies(ctx); err != nil {
		log.Fatalf("dependency readiness failed: %v", err)
	}

	users := r.setupUsers(ctx)
	if len(users) == 0 {
		log.Fatal("failed to initialize any users")
	}
	log.Printf("load generator initialized: users=%d duration=%s ws=%v rate_per_user=%.2f req/s",
		len(users), cfg.Duration.String(), cfg.EnableWebsocket, cfg.ActionsPerUserPerSecond)

	go r.logProgress(ctx)

	var wg sync.WaitGroup
	for idx := range users {
		user := users[idx]
		wg.Add(1)
		go func(u *simulatedUser) {
			defer wg.Done()
			r.runUser(ctx, u)
		}(user)
	}

	<-ctx.Done()
	wg.Wait()

	log.Printf("load test complete: success_requests=%d error_requests=%d feed_frames=%d",
		r.requestsSuccess.Load(), r.requestsError.Load(), r.feedFrames.Load())
}

func loadConfig() config {
	return config{
		PlanAPIBase:             trimRightSlash(stringEnv("LOADGEN_PLAN_API_BASE", "http://plan-api:8080")),
		StreamerBase:            trimRightSlash(stringEnv("LOADGEN_STREAMER_BASE", "http://activity-streamer:8081")),
		Users:                   intEnv("LOADGEN_USERS", 200),
		SetupConcurrency:        intEnv("LOADGEN_SETUP_CONCURRENCY", 25),
		StartupWait:             durationEnv("LOADGEN_STARTUP_WAIT", 2*time.Minute),
		Duration:                durationEnv("LOADGEN_DURATION", 10*time.Minute),
		RampUp:                  durationEnv("LOADGEN_RAMP_UP", 30*time.Second),
		ActionsPerUserPerSecond: floatEnv("LOADGEN_ACTIONS_PER_USER_PER_SECOND", 0.3),
		RequestTimeout:          durationEnv("LOADGEN_REQUEST_TIMEOUT", 10*time.Second),
		MetricsAddr:             stringEnv("LOADGEN_METRICS_ADDR", ":9099"),
		Password:                stringEnv("LOADGEN_PASSWORD", "load-test-pass-123"),
		EnableWebsocket:         boolEnv("LOADGEN_ENABLE_WS", true),
	}
}

func (r *runner) waitForDependencies(ctx context.Context) error {
	wait := r.cfg.StartupWait
	if wait <= 0 {
		wait = 2 * time.Minute
	}

	if err := r.waitForHTTPStatus(ctx, r.cfg.PlanAPIBase+"/readyz", http.StatusOK, wait); err != nil {
		return fmt.Errorf("plan-api not ready: %w", err)
	}
	if err := r.waitForHTTPStatus(ctx, r.cfg.StreamerBase+"/readyz", http.StatusOK, wait); err != nil {
		return fmt.Errorf("activity-streamer not ready: %w", err)
	}
	return nil
}

func (r *runner) waitForHTTPStatus(ctx context.Context, requestURL string, expectedStatus int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			lastErr = err
			time.Sleep(1200 * time.Millisecond)
			continue
		}
		resp, err := r.apiClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(1200 * time.Millisecond)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == expectedStatus {
			return nil
		}
		lastErr = fmt.Errorf("status=%d", resp.StatusCode)
		time.Sleep(1200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout")
	}
	return lastErr
}

func (r *runner) setupUsers(ctx context.Context) []*simulatedUser {
	type setupResult struct {
		user *simulatedUser
		err  error
	}

	sem := make(chan struct{}, r.cfg.SetupConcurrency)
	results := make(chan setupResult, r.cfg.Users)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Users; i++ {
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			user, err := r.setupSingleUser(ctx, idx)
			results <- setupResult{user: user, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	users := make([]*simulatedUser, 0, r.cfg.Users)
	failures := 0
	for result := range results {
		if result.err != nil {
			failures++
			log.Printf("user setup failed: %v", result.err)
			continue
		}
		users = append(users, result.user)
	}
	log.Printf("user setup complete: success=%d failed=%d", len(users), failures)
	return users
}

// setupSingleUser walks the full onboarding path: register (or login on
// conflict), create an org, create a workspace, then select it to get a
// workspace-scoped token.
func (r *runner) setupSingleUser(ctx context.Context, idx int) (*simulatedUser, error) {
	user := &simulatedUser{
		Index:    idx,
		Username: fmt.Sprintf("load-%s-%04d", r.runID, idx),
		Password: r.cfg.Password,
	}

	var sess sessionResponse
	status, err := r.requestJSON(ctx, "register", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/auth/register", map[string]string{
		"username": user.Username,
		"password": user.Password,
	}, nil, &sess, http.StatusCreated, http.StatusConflict)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", user.Username, err)
	}

	if status == http.StatusConflict {
		sess = sessionResponse{}
		if _, err := r.requestJSON(ctx, "login", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/auth/login", map[string]string{
			"username": user.Username,
			"password": user.Password,
		}, nil, &sess, http.StatusOK); err != nil {
			return nil, fmt.Errorf("login %s: %w", user.Username, err)
		}
	}

	if strings.TrimSpace(sess.AccessToken) == "" {
		return nil, fmt.Errorf("empty access token for %s", user.Username)
	}
	user.AccessToken = sess.AccessToken
	user.UserID = sess.UserID

	var org idResponse
	if _, err := r.requestJSON(ctx, "create_org", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/orgs", map[string]string{
		"name": fmt.Sprintf("Load Org %d", user.Index),
	}, &user.AccessToken, &org, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create org for %s: %w", user.Username, err)
	}
	if strings.TrimSpace(org.ID) == "" {
		return nil, fmt.Errorf("empty org id for %s", user.Username)
	}
	user.OrgID = org.ID

	var ws idResponse
	if _, err := r.requestJSON(ctx, "create_workspace", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/orgs/"+user.OrgID+"/workspaces", map[string]string{
		"name": fmt.Sprintf("Load Workspace %d", user.Index),
	}, &user.AccessToken, &ws, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create workspace for %s: %w", user.Username, err)
	}
	if strings.TrimSpace(ws.ID) == "" {
		return nil, fmt.Errorf("empty workspace id for %s", user.Username)
	}
	user.WorkspaceID = ws.ID

	sess = sessionResponse{}
	if _, err := r.requestJSON(ctx, "select_workspace", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/workspaces/"+user.WorkspaceID+"/select", nil,
		&user.AccessToken, &sess, http.StatusOK); err != nil {
		return nil, fmt.Errorf("select workspace for %s: %w", user.Username, err)
	}
	if strings.TrimSpace(sess.AccessToken) == "" {
		return nil, fmt.Errorf("empty scoped token for %s", user.Username)
	}
	user.AccessToken = sess.AccessToken

	return user, nil
}

func (r *runner) runUser(ctx context.Context, user *simulatedUser) {
	if r.cfg.RampUp > 0 {
		delay := time.Duration((float64(r.cfg.RampUp) / float64(maxInt(r.cfg.Users, 1))) * float64(user.Index))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	if r.cfg.EnableWebsocket {
		go r.runChannel(ctx, user)
	}

	virtualUsersGauge.Inc()
	r.activeVUs.Add(1)
	defer virtualUsersGauge.Dec()
	defer r.activeVUs.Add(-1)

	interval := time.Second
	if r.cfg.ActionsPerUserPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / r.cfg.ActionsPerUserPerSecond)
		if interval < 25*time.Millisecond {
			interval = 25 * time.Millisecond
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(user.Index*7)))
	initialJitter := time.Duration(rng.Int63n(int64(interval)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialJitter):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runAction(ctx, user, rng)
		}
	}
}

func (r *runner) runAction(ctx context.Context, user *simulatedUser, rng *rand.Rand) {
	planID, hasPlan := user.randomPlan(rng)

	choice := rng.Float64()
	switch {
	case !hasPlan || choice < 0.50:
		r.createPlan(ctx, user, rng)
	case choice < 0.75:
		r.renamePlan(ctx, user, rng, planID)
	case choice < 0.90:
		r.createPost(ctx, user, rng, planID)
	default:
		r.deletePlan(ctx, user, planID)
	}
}

// createPlan drives the whole wizard: open a session, apply a complete draft,
// submit. Exercises the same path a browser would.
func (r *runner) createPlan(ctx context.Context, user *simulatedUser, rng *rand.Rand) {
	var wiz wizardResponse
	if _, err := r.requestJSON(ctx, "wizard_create", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/wizard", map[string]string{
		"plan_type_id": "conference",
	}, &user.AccessToken, &wiz, http.StatusCreated); err != nil {
		actionsTotal.WithLabelValues("create_plan", "error").Inc()
		return
	}

	draft := wizard.DefaultDraft("conference")
	draft.Name = fmt.Sprintf("Load Plan %d", rng.Intn(1_000_000))
	draft.Description = "generated by the load driver"
	draft.Capacity = wizard.Capacity{Type: wizard.CapacityRecommended, Value: 100}
	draft.Location = wizard.VenueLocation("1 Load Street")
	draft.Tickets = []wizard.Ticket{
		{Name: "General", Quantity: 80, TicketType: "free"},
		{Name: "VIP", Quantity: 20, TicketType: "paid-standard", Price: 4900, Currency: "EUR"},
	}

	wizardBase := r.cfg.PlanAPIBase + "/api/v1/wizard/" + wiz.ID
	if _, err := r.requestJSON(ctx, "wizard_draft", http.MethodPut, wizardBase+"/draft", map[string]any{
		"draft": draft,
	}, &user.AccessToken, nil, http.StatusOK); err != nil {
		actionsTotal.WithLabelValues("create_plan", "error").Inc()
		return
	}

	var plan idResponse
	if _, err := r.requestJSON(ctx, "wizard_submit", http.MethodPost, wizardBase+"/submit", nil,
		&user.AccessToken, &plan, http.StatusCreated); err != nil {
		actionsTotal.WithLabelValues("create_plan", "error").Inc()
		return
	}
	if strings.TrimSpace(plan.ID) != "" {
		user.addPlan(plan.ID)
	}
	actionsTotal.WithLabelValues("create_plan", "success").Inc()
}

func (r *runner) renamePlan(ctx context.Context, user *simulatedUser, rng *rand.Rand, planID string) {
	if strings.TrimSpace(planID) == "" {
		r.createPlan(ctx, user, rng)
		return
	}

	_, err := r.requestJSON(ctx, "plan_rename", http.MethodPatch, r.cfg.PlanAPIBase+"/api/v1/plans/"+planID+"/general", map[string]string{
		"name":        fmt.Sprintf("Renamed Load Plan %d", rng.Intn(1_000_000)),
		"description": "renamed by the load driver",
	}, &user.AccessToken, nil, http.StatusOK)
	if err != nil {
		actionsTotal.WithLabelValues("rename_plan", "error").Inc()
		return
	}
	actionsTotal.WithLabelValues("rename_plan", "success").Inc()
}

func (r *runner) createPost(ctx context.Context, user *simulatedUser, rng *rand.Rand, planID string) {
	payload := map[string]string{
		"title": fmt.Sprintf("Load Post %d", rng.Intn(1_000_000)),
		"body":  "posted by the load driver",
	}
	if strings.TrimSpace(planID) != "" {
		payload["plan_id"] = planID
	}

	_, err := r.requestJSON(ctx, "post_create", http.MethodPost, r.cfg.PlanAPIBase+"/api/v1/posts", payload,
		&user.AccessToken, nil, http.StatusCreated)
	if err != nil {
		actionsTotal.WithLabelValues("create_post", "error").Inc()
		return
	}
	actionsTotal.WithLabelValues("create_post", "success").Inc()
}

func (r *runner) deletePlan(ctx context.Context, user *simulatedUser, planID string) {
	if strings.TrimSpace(planID) == "" {
		actionsTotal.WithLabelValues("delete_plan", "error").Inc()
		return
	}

	_, err := r.requestJSON(ctx, "plan_delete", http.MethodDelete, r.cfg.PlanAPIBase+"/api/v1/plans/"+planID, nil,
		&user.AccessToken, nil, http.StatusNoContent)
	if err != nil {
		actionsTotal.WithLabelValues("delete_plan", "error").Inc()
		return
	}
	user.removePlan(planID)
	actionsTotal.WithLabelValues("delete_plan", "success").Inc()
}

// runChannel keeps a reconnecting websocket open for the user and reconciles
// inbound activity frames into a local feed, the way the UI does.
func (r *runner) runChannel(ctx context.Context, user *simulatedUser) {
	wsURL := strings.Replace(r.cfg.StreamerBase, "http", "ws", 1) + "/ws"
	channel := realtime.NewChannel(realtime.WebsocketDialer(wsURL, user.AccessToken), user.UserID)

	applyFrame := func(frame contracts.Frame) {
		framesTotal.WithLabelValues(frame.Action).Inc()
		r.feedFrames.Add(1)
		var event contracts.ActivityEvent
		if err := json.Unmarshal(frame.Payload, &event); err != nil {
			return
		}
		user.feed.Apply(event)
	}
	for _, action := range []string{contracts.ActionActivityCreated, contracts.ActionActivityUpdated, contracts.ActionActivityDeleted} {
		defer channel.Subscribe(action, applyFrame)()
	}
	defer channel.Subscribe(contracts.ActionFeedSnapshot, func(frame contracts.Frame) {
		framesTotal.WithLabelValues(frame.Action).Inc()
		r.feedFrames.Add(1)
		var snapshot []contracts.ActivityEvent
		if err := json.Unmarshal(frame.Payload, &snapshot); err != nil {
			return
		}
		user.feed.Seed(snapshot)
	})()

	channelsGauge.Inc()
	r.activeChannels.Add(1)
	defer channelsGauge.Dec()
	defer r.activeChannels.Add(-1)

	channel.Run(ctx)
}

func (r *runner) requestJSON(
	ctx context.Context,
	endpoint, method, requestURL string,
	payload any,
	bearerToken *string,
	out any,
	expectedStatuses ...int,
) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != nil && strings.TrimSpace(*bearerToken) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(*bearerToken))
	}

	resp, err := r.apiClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, method, "0", "error").Inc()
		r.requestsError.Add(1)
		return 0, err
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		requestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(resp.StatusCode), "error").Inc()
		r.requestsError.Add(1)
		return resp.StatusCode, readErr
	}

	statusText := strconv.Itoa(resp.StatusCode)
	if isExpectedStatus(resp.StatusCode, expectedStatuses) {
		requestsTotal.WithLabelValues(endpoint, method, statusText, "success").Inc()
		r.requestsSuccess.Add(1)
		if out != nil && len(responseBody) > 0 {
			if err := json.Unmarshal(responseBody, out); err != nil {
				return resp.StatusCode, err
			}
		}
		return resp.StatusCode, nil
	}

	requestsTotal.WithLabelValues(endpoint, method, statusText, "error").Inc()
	r.requestsError.Add(1)
	return resp.StatusCode, fmt.Errorf("unexpected status=%d body=%s", resp.StatusCode, truncate(string(responseBody), 240))
}

func (r *runner) logProgress(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("progress: success_requests=%d error_requests=%d active_vus=%d active_channels=%d feed_frames=%d",
				r.requestsSuccess.Load(),
				r.requestsError.Load(),
				r.activeVUs.Load(),
				r.activeChannels.Load(),
				r.feedFrames.Load(),
			)
		}
	}
}

func runMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultHandler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("load generator metrics endpoint listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("load generator metrics server failed: %v", err)
	}
}

func (u *simulatedUser) addPlan(planID string) {
	if strings.TrimSpace(planID) == "" {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.plans = append(u.plans, planID)
}

func (u *simulatedUser) randomPlan(rng *rand.Rand) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.plans) == 0 {
		return "", false
	}
	return u.plans[rng.Intn(len(u.plans))], true
}

func (u *simulatedUser) removePlan(planID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for idx, existing := range u.plans {
		if existing != planID {
			continue
		}
		u.plans[idx] = u.plans[len(u.plans)-1]
		u.plans = u.plans[:len(u.plans)-1]
		return
	}
}

func trimRightSlash(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}

func isExpectedStatus(status int, expected []int) bool {
	for _, candidate := range expected {
		if status == candidate {
			return true
		}
	}
	return false
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func stringEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func floatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
