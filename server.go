package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/CodedInternet/emmdiag/onboard"
	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/CodedInternet/emmdiag/onboard/motortest"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	// lines a single request can collect, more than the longest complete test prints
	RESULT_LINES = 256
	STREAM_LINES = 64
)

type ctxKey int

const addrKey ctxKey = iota

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

//---
// Payloads
//---

type CheckResult struct {
	Addr   uint8                `json:"addr,omitempty"`
	Check  string               `json:"check"`
	OK     bool                 `json:"ok"`
	Error  string               `json:"error,omitempty"`
	Lines  []string             `json:"lines"`
	Stats  *motortest.TestStats `json:"stats,omitempty"`
	Data   []byte               `json:"data,omitempty"`
	status int
}

func (res *CheckResult) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, res.status)
	return nil
}

type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrBusy() render.Renderer {
	return &ErrResponse{
		Err:            derrors.ErrBusy,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "BUSY",
		ErrorText:      derrors.ErrBusy.Error(),
	}
}

//---
// Server
//---

// Server exposes the checks of one device over HTTP. One check runs at a time,
// a request arriving while another is running, from here or the shell, gets 409.
type Server struct {
	device *onboard.Device
	router chi.Router
}

func NewServer(d *onboard.Device) *Server {
	s := &Server{device: d}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/scan", s.Scan)

		r.Route("/motors/{addr}", func(r chi.Router) {
			r.Use(AddrCtx)

			r.Get("/connection", s.single("connection", (*motortest.Session).Connection))
			r.Get("/status", s.single("status", (*motortest.Session).ReadStatus))
			r.Post("/enable", s.single("enable", (*motortest.Session).Enable))
			r.Post("/move", s.single("move", (*motortest.Session).SmallMove))
			r.Post("/complete", s.Complete)
			r.Get("/params/{param}", s.ReadParam)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/output", s.OutputHandler)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddrCtx validates the {addr} url parameter and stores it on the request context.
func AddrCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := parseAddr(chi.URLParam(r, "addr"))
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		ctx := context.WithValue(r.Context(), addrKey, addr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs each request through zerolog once it has been served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t1 := time.Now()
		defer func() {
			log.Info().
				Str("req", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(t1)).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}

func addrFrom(r *http.Request) uint8 {
	return r.Context().Value(addrKey).(uint8)
}

// run executes f with the tester to itself and collects every line it prints.
func (s *Server) run(w http.ResponseWriter, r *http.Request, res *CheckResult, f func(sess *motortest.Session) error) {
	sess, ok := s.device.Tester.TryLock()
	if !ok {
		render.Render(w, r, ErrBusy())
		return
	}
	defer sess.Unlock()

	lines, cancel := s.device.Output.Subscribe(RESULT_LINES)
	err := f(sess)
	cancel()

	res.Lines = []string{}
	for line := range lines {
		res.Lines = append(res.Lines, line)
	}

	res.OK = err == nil
	res.status = http.StatusOK
	if err != nil {
		res.Error = err.Error()
		res.status = statusFor(err)
	}

	render.Render(w, r, res)
}

func statusFor(err error) int {
	var invalid derrors.InvalidAddressError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case derrors.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) single(name string, check func(sess *motortest.Session, addr uint8) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := addrFrom(r)
		res := &CheckResult{Addr: addr, Check: name}
		s.run(w, r, res, func(sess *motortest.Session) error {
			return check(sess, addr)
		})
	}
}

func (s *Server) Complete(w http.ResponseWriter, r *http.Request) {
	addr := addrFrom(r)
	res := &CheckResult{Addr: addr, Check: "complete"}
	s.run(w, r, res, func(sess *motortest.Session) error {
		stats := sess.Complete(addr)
		res.Stats = &stats
		if !stats.Passed() {
			return errors.New("one or more checks failed")
		}
		return nil
	})
}

// Scan runs the batch connection test. start and end default to the configured range.
func (s *Server) Scan(w http.ResponseWriter, r *http.Request) {
	first, last := s.device.Config.Addresses.First, s.device.Config.Addresses.Last

	var err error
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		if first, err = parseAddr(v); err != nil {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
	}
	if v := q.Get("end"); v != "" {
		if last, err = parseAddr(v); err != nil {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
	}

	res := &CheckResult{Check: "scan"}
	s.run(w, r, res, func(sess *motortest.Session) error {
		stats := sess.AllConnections(first, last)
		res.Stats = &stats
		if !stats.Passed() {
			return errors.New("not every motor answered")
		}
		return nil
	})
}

func (s *Server) ReadParam(w http.ResponseWriter, r *http.Request) {
	addr := addrFrom(r)
	param, err := hardware.ParseSysParam(chi.URLParam(r, "param"))
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	res := &CheckResult{Addr: addr, Check: "read " + param.String()}
	s.run(w, r, res, func(sess *motortest.Session) (err error) {
		res.Data, err = sess.ReadParam(addr, param)
		return
	})
}

// OutputHandler streams every diagnostic line, whoever started the check, as a text message.
func (s *Server) OutputHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	lines, cancel := s.device.Output.Subscribe(STREAM_LINES)
	defer cancel()

	go func(conn *websocket.Conn, lines <-chan string) {
		for line := range lines {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}(conn, lines)

	// the client never sends anything useful, reading only notices it leaving
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().Err(err).Msg("websocket closed")
			return
		}
	}
}

//---
// Command
//---

var serveOpts struct {
	listen string
	shell  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the checks over HTTP and stream their output on /ws/output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *onboard.Device) error {
			listen := d.Config.Listen
			if serveOpts.listen != "" {
				listen = serveOpts.listen
			}

			if serveOpts.shell {
				// Start an instance of the shell so it can be controlled from the CLI
				go newShell(d).Start()
			}

			log.Info().Str("listen", listen).Bool("sim", d.Simulated).Msg("serving diagnostics")
			return http.ListenAndServe(listen, NewServer(d))
		})
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.listen, "listen", "l", "", "ip:port to listen on, overrides the config file")
	serveCmd.Flags().BoolVar(&serveOpts.shell, "shell", false, "also run the interactive shell")
	rootCmd.AddCommand(serveCmd)
}
