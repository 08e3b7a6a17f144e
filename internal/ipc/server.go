// Package ipc implements C12's control-socket half: a local stream-socket
// endpoint (Unix domain socket on POSIX, named pipe on Windows, mode 0600)
// accepting line-delimited JSON commands and forwarding them to
// internal/session's command channel (spec.md §4.12, §6). The hotkey half of
// C12 lives in internal/hotkey and feeds the same channel.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"swictation/internal/daemonlog"
	"swictation/internal/rewrite"
	"swictation/internal/session"
)

// replyTimeout bounds how long a connection waits for session.Manager to
// answer a status/quit request before reporting an error, so a stuck
// T_worker can never wedge an IPC client open indefinitely.
const replyTimeout = 2 * time.Second

// Server is the C12 control-socket listener.
type Server struct {
	listener net.Listener
	cmds     chan<- session.Command
	store    *rewrite.CorrectionStore
	log      *daemonlog.Logger

	// Quit is invoked once, after a "quit" request is acknowledged by
	// session.Manager, so the caller (cmd/swictationd) can cancel the root
	// context and drive an orderly shutdown (spec.md §5).
	Quit func()

	done chan struct{}
	wg   sync.WaitGroup
}

// Listen opens the control socket at path and starts accepting connections.
// cmds is session.Manager's command channel; store is used for the
// supplemented learn_correction action.
func Listen(path string, cmds chan<- session.Command, store *rewrite.CorrectionStore, logger *daemonlog.Logger) (*Server, error) {
	ln, err := listen(path)
	if err != nil {
		return nil, fmt.Errorf("open control socket: %w", err)
	}
	s := &Server{
		listener: ln,
		cmds:     cmds,
		store:    store,
		log:      logger,
		Quit:     func() {},
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Close stops accepting connections and waits for in-flight ones to finish.
func (s *Server) Close() error {
	close(s.done)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Warn("accept control connection", "err", err)
				return
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(failMsg(fmt.Sprintf("invalid request: %v", err)))
			continue
		}
		enc.Encode(s.dispatch(req))
	}
}

func (s *Server) dispatch(req request) response {
	switch req.Action {
	case "toggle":
		if err := s.send(session.Command{Kind: session.CmdToggle}); err != nil {
			return fail(err)
		}
		return ok("toggled")
	case "status":
		reply, err := s.sendAndWait(session.CmdStatus)
		if err != nil {
			return fail(err)
		}
		return okState(string(reply.State))
	case "quit":
		reply, err := s.sendAndWait(session.CmdQuit)
		if err != nil {
			return fail(err)
		}
		s.Quit()
		return response{Status: "success", Message: "shutting down", State: string(reply.State)}
	case "learn_correction":
		return s.learnCorrection(req)
	default:
		return failMsg(fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *Server) send(cmd session.Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-time.After(replyTimeout):
		return fmt.Errorf("timed out sending command to session manager")
	}
}

func (s *Server) sendAndWait(kind session.CommandKind) (session.Reply, error) {
	replyCh := make(chan session.Reply, 1)
	if err := s.send(session.Command{Kind: kind, Reply: replyCh}); err != nil {
		return session.Reply{}, err
	}
	select {
	case r := <-replyCh:
		return r, nil
	case <-time.After(replyTimeout):
		return session.Reply{}, fmt.Errorf("timed out waiting for session manager")
	}
}

// learnCorrection implements the learn_correction supplement (SPEC_FULL.md
// §6). case_policy is accepted but not yet settable per-call: Learn always
// stores CaseModePreserveInput (see DESIGN.md's ipc entry for why).
func (s *Server) learnCorrection(req request) response {
	if req.Trigger == "" || req.Replacement == "" {
		return failMsg("learn_correction requires trigger and replacement")
	}
	mode := rewrite.CorrectionMode(req.Mode)
	if mode == "" {
		mode = rewrite.CorrectionModeAll
	}
	matchType := rewrite.MatchType(req.MatchKind)
	if matchType == "" {
		matchType = rewrite.MatchTypeExact
	}

	c, err := s.store.Learn(req.Trigger, req.Replacement, mode, matchType)
	if err != nil {
		return fail(err)
	}
	return okID(c.ID)
}
