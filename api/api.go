// Package api serves the HTTP interface of the lease manager and the claim
// registry.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/claims"
	"github.com/aukilabs/splatgrid/featureflag"
	splathttp "github.com/aukilabs/splatgrid/http"
	"github.com/aukilabs/splatgrid/lease"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/websocket"
	"github.com/gorilla/mux"
	"github.com/segmentio/encoding/json"
	xwebsocket "golang.org/x/net/websocket"
)

const (
	maxBodySize = 1 << 20

	defaultLogSummaryInterval = time.Minute
)

// API wires the domain services to HTTP routes.
type API struct {
	Leases *lease.Manager
	Claims *claims.Registry
	Auth   splathttp.Authenticator

	// The hub serving the change feed. The feed route is not registered
	// when nil.
	Hub *websocket.Hub

	// The per caller rate limiter applied to mutations.
	Limiter *splathttp.LimiterPool

	FeatureFlags       featureflag.FeatureFlag
	PublicEndpoint     string
	LogSummaryInterval time.Duration

	// The context that ends feed connections.
	Context context.Context
}

// Handler returns the router serving the API.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()

	a.FeatureFlags.IfNotSet(featureflag.FlagDisableLeasing, func() {
		r.Handle("/maps", a.authenticated(a.handleMaps)).Methods(http.MethodGet)
		r.Handle("/maps/{mapID}/cells", a.authenticated(a.handleCells)).Methods(http.MethodGet)
		r.Handle("/maps/{mapID}/claims", a.authenticated(a.handleMapClaims)).Methods(http.MethodGet)
		r.Handle("/maps/{mapID}/cells/{index}/reserve", a.authenticated(a.handleReserve)).Methods(http.MethodPost)
		r.Handle("/leases/attach", a.authenticated(a.handleAttach)).Methods(http.MethodPost)
	})

	a.FeatureFlags.IfNotSet(featureflag.FlagDisableLatticeClaims, func() {
		r.HandleFunc("/claims", a.handleListClaims).Methods(http.MethodGet)
		r.Handle("/claims", a.authenticated(a.handleCreateClaim)).Methods(http.MethodPost)
	})

	r.HandleFunc("/claims/{id}", a.handleGetClaim).Methods(http.MethodGet)

	// Deleting also frees bounded map cells.
	r.Handle("/claims/{id}", a.authenticated(a.handleDeleteClaim)).Methods(http.MethodDelete)
	r.Handle("/me", a.authenticated(a.handleMe)).Methods(http.MethodGet)

	if a.Hub != nil {
		r.Handle("/feed", a.feed()).Methods(http.MethodGet)
	}

	return r
}

func (a *API) authenticated(h http.HandlerFunc) http.Handler {
	var handler http.Handler = h

	if a.Limiter != nil && !a.FeatureFlags.IsSet(featureflag.FlagDisableRateLimit) {
		handler = splathttp.HandleWithRateLimit(a.Limiter, handler)
	}
	return splathttp.VerifyAuthTokenHandler(a.Auth, handler)
}

func (a *API) feed() http.Handler {
	ctx := a.Context
	if ctx == nil {
		ctx = context.Background()
	}

	summaryInterval := a.LogSummaryInterval
	if summaryInterval <= 0 {
		summaryInterval = defaultLogSummaryInterval
	}

	return xwebsocket.Server{
		Handshake: splathttp.VerifyAuthToken(a.Auth),
		Handler: func(conn *xwebsocket.Conn) {
			defer conn.Close()

			var h websocket.Handler = &websocket.FeedHandler{Hub: a.Hub}
			h = websocket.HandlerWithLogs(h, summaryInterval)
			h = websocket.HandlerWithMetrics(h, a.PublicEndpoint)
			defer h.Close()

			websocket.Handle(ctx, conn, h)
		},
	}
}

type mapsResponse struct {
	Maps []models.Map `json:"maps"`
}

func (a *API) handleMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := a.Leases.Maps(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if maps == nil {
		maps = []models.Map{}
	}
	splathttp.JSON(w, http.StatusOK, mapsResponse{Maps: maps})
}

// Cell is the public view of a lease.
type Cell struct {
	ID            string             `json:"id"`
	Index         int                `json:"index"`
	Status        models.LeaseStatus `json:"status"`
	ClaimID       string             `json:"claimId,omitempty"`
	ReservedUntil *time.Time         `json:"reservedUntil,omitempty"`
}

func newCell(l models.Lease) Cell {
	c := Cell{
		ID:      l.ID,
		Index:   l.Index,
		Status:  l.Status,
		ClaimID: l.ClaimID,
	}

	if l.Status == models.LeaseReserved {
		until := l.ReservedUntil
		c.ReservedUntil = &until
	}
	return c
}

type cellsResponse struct {
	Cells []Cell `json:"cells"`
}

func (a *API) handleCells(w http.ResponseWriter, r *http.Request) {
	resolution, err := parseResolution(r.URL.Query().Get("gridResolution"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	leases, err := a.Leases.Cells(r.Context(), mux.Vars(r)["mapID"], resolution)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cells := make([]Cell, len(leases))
	for i, l := range leases {
		cells[i] = newCell(l)
	}
	splathttp.JSON(w, http.StatusOK, cellsResponse{Cells: cells})
}

type reserveRequest struct {
	Resolution int `json:"gridResolution"`
}

type cellResponse struct {
	Cell Cell `json:"cell"`
}

func (a *API) handleReserve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, r, errInvalidRequest("invalid cell index", err))
		return
	}

	var req reserveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, _ := models.UserFromContext(r.Context())
	l, err := a.Leases.Reserve(r.Context(), u, vars["mapID"], req.Resolution, index)
	if err != nil {
		writeError(w, r, err)
		return
	}

	splathttp.JSON(w, http.StatusOK, cellResponse{Cell: newCell(l)})
}

type attachResponse struct {
	ClaimID string `json:"claimId"`
}

func (a *API) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req lease.AttachRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, _ := models.UserFromContext(r.Context())
	c, err := a.Leases.Attach(r.Context(), u, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	splathttp.JSON(w, http.StatusOK, attachResponse{ClaimID: c.ID})
}

type claimsResponse struct {
	Claims []models.Claim `json:"claims"`
}

func (a *API) handleListClaims(w http.ResponseWriter, r *http.Request) {
	list, err := a.Claims.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if list == nil {
		list = []models.Claim{}
	}
	splathttp.JSON(w, http.StatusOK, claimsResponse{Claims: list})
}

func (a *API) handleMapClaims(w http.ResponseWriter, r *http.Request) {
	list, err := a.Claims.ListMap(r.Context(), mux.Vars(r)["mapID"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if list == nil {
		list = []models.Claim{}
	}
	splathttp.JSON(w, http.StatusOK, claimsResponse{Claims: list})
}

type claimResponse struct {
	Claim models.Claim `json:"claim"`
}

func (a *API) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := a.Claims.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	splathttp.JSON(w, http.StatusOK, claimResponse{Claim: c})
}

func (a *API) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req claims.CreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, _ := models.UserFromContext(r.Context())
	c, err := a.Claims.Create(r.Context(), u, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	splathttp.JSON(w, http.StatusOK, claimResponse{Claim: c})
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (a *API) handleDeleteClaim(w http.ResponseWriter, r *http.Request) {
	u, _ := models.UserFromContext(r.Context())
	if _, err := a.Claims.Delete(r.Context(), u, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	splathttp.JSON(w, http.StatusOK, okResponse{OK: true})
}

type meResponse struct {
	User models.User `json:"user"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := models.UserFromContext(r.Context())
	splathttp.JSON(w, http.StatusOK, meResponse{User: u})
}

// decode reads the JSON body of a request into v. An empty body leaves v
// unchanged.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := d.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidRequest("invalid request body", err)
	}
	return nil
}

// parseResolution parses the gridResolution query parameter. A missing value
// is zero, which lets the lease manager pick the map resolution.
func parseResolution(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	resolution, err := strconv.Atoi(s)
	if err != nil {
		return 0, errInvalidRequest("invalid gridResolution", err)
	}
	return resolution, nil
}

func errInvalidRequest(msg string, err error) error {
	return errors.New(msg).
		WithType(models.ErrTypeInvalidRequest).
		Wrap(err)
}
