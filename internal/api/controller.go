package api

/*
Controller-facing and dashboard-facing endpoints:

POST /pull       (form/JSON: id)             -> pending command
POST /push       (form/JSON: flat telemetry) -> ack
GET  /snapshot?id=&t=                        -> dashboard view, no-cache
POST /control    (action, device, state | action, mode, optional id)
GET  /api/v1/devices/{id}/history?limit=n

Legacy firmware paths (/getdata.php, /updatedata.php, /api_realtime.php,
/dashboard.php) are routed to the same handlers.
*/

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"dchome/internal/control"
	"dchome/internal/errcode"
	"dchome/internal/middleware"
	"dchome/internal/syncsvc"
	"dchome/internal/wire"

	"github.com/gorilla/mux"
)

// maxBody — push с полным набором полей занимает ~2 КБ.
const maxBody = 64 << 10

type Controller struct {
	sync      *syncsvc.Service
	gateway   *control.Gateway
	defaultID string
	now       func() time.Time
}

func NewController(s *syncsvc.Service, g *control.Gateway, defaultDeviceID string) *Controller {
	return &Controller{
		sync:      s,
		gateway:   g,
		defaultID: defaultDeviceID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func RegisterRoutes(r *mux.Router, s *syncsvc.Service, g *control.Gateway, defaultDeviceID string) *Controller {
	c := NewController(s, g, defaultDeviceID)
	c.Register(r)
	return c
}

func (c *Controller) Register(r *mux.Router) {
	snapshot := middleware.NoCache(http.HandlerFunc(c.handleSnapshot))

	r.HandleFunc("/pull", c.handlePull).Methods(http.MethodPost)
	r.HandleFunc("/push", c.handlePush).Methods(http.MethodPost)
	r.Handle("/snapshot", snapshot).Methods(http.MethodGet)
	r.HandleFunc("/control", c.handleControl).Methods(http.MethodPost)

	// старые пути прошивки и дашборда
	r.HandleFunc("/getdata.php", c.handlePull).Methods(http.MethodPost)
	r.HandleFunc("/updatedata.php", c.handlePush).Methods(http.MethodPost)
	r.Handle("/api_realtime.php", snapshot).Methods(http.MethodGet)
	r.HandleFunc("/dashboard.php", c.handleControl).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	// id может содержать "/", сопоставляем по экранированному пути
	api.UseEncodedPath()
	api.HandleFunc("/devices/{id}/history", c.handleHistory).Methods(http.MethodGet)
}

// readFields — form-urlencoded/multipart или JSON-объект с теми же ключами.
func readFields(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if strings.HasPrefix(ct, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		out := url.Values{}
		if len(strings.TrimSpace(string(body))) == 0 {
			return out, nil
		}
		var in map[string]any
		if err := json.Unmarshal(body, &in); err != nil {
			return nil, fmt.Errorf("bad json: %w", err)
		}
		for k, v := range in {
			switch x := v.(type) {
			case nil:
			case string:
				out.Set(k, x)
			case float64:
				out.Set(k, strconv.FormatFloat(x, 'f', -1, 64))
			case bool:
				if x {
					out.Set(k, "1")
				} else {
					out.Set(k, "0")
				}
			default:
				out.Set(k, fmt.Sprint(x))
			}
		}
		return out, nil
	}

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBody); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}

func fieldNames(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func httpStatus(err error) int {
	switch errcode.Of(err) {
	case errcode.MissingRequiredField, errcode.InvalidArgument:
		return http.StatusBadRequest
	case errcode.StorageUnavailable:
		return http.StatusServiceUnavailable
	case errcode.NoData:
		return http.StatusNotFound
	case errcode.TooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, debug map[string]any) {
	status := httpStatus(err)
	code := errcode.Of(err)
	resp := wire.ErrorResponse{
		Status:    wire.StatusError,
		Code:      string(code),
		Message:   msg,
		DebugInfo: debug,
	}
	if code == errcode.StorageUnavailable {
		resp.SQLError = errcode.Cause(err)
	}
	l := middleware.Log(r.Context()).WithError(err).WithField("code", code)
	if status >= 500 {
		l.Errorf("%s %s: %s", r.Method, r.URL.Path, msg)
	} else {
		l.Warnf("%s %s: %s", r.Method, r.URL.Path, msg)
	}
	wire.Write(w, r, status, resp)
}

func (c *Controller) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		c.writeError(w, r, errcode.Wrap(errcode.TooLarge, "api.read", err), "request body too large",
			map[string]any{"limit": mbe.Limit})
		return
	}
	c.writeError(w, r, errcode.Wrap(errcode.InvalidArgument, "api.read", err), "cannot parse request body", nil)
}
