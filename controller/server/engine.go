// Package server implements the controller's protocol engine: the
// cooperative loop that parses SSG lines, enforces the sequence and
// state-legality gates, drives the queue/planner/homing/safety
// components, and emits replies and telemetry.
package server

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"saucecnc/controller/config"
	"saucecnc/controller/homing"
	"saucecnc/controller/io"
	"saucecnc/controller/kinematics"
	"saucecnc/controller/planner"
	"saucecnc/controller/queue"
	"saucecnc/controller/safety"
	"saucecnc/controller/statemachine"
	"saucecnc/protocol"
)

// Engine owns the controller's full command-handling pipeline for a
// single connected host. It is safe to drive from a single goroutine
// only — per the spec's single-writer/single-reader queue model.
type Engine struct {
	cfg *config.MachineConfig

	sm    *statemachine.Machine
	q     *queue.Queue
	kin   *kinematics.Cartesian
	plan  *planner.Planner
	homer *homing.Homer
	mon   *safety.Monitor
	io    *io.SimulatedIO

	expectedNextSeq uint64
	lastAckedSeq    uint64

	posX, posY float64
	flowDuty   int
	sauceOn    bool

	lastCommandMS   int64
	heartbeatTripped bool
}

// New builds an Engine from configuration, wiring a SimulatedIO
// backend for the stepper, endstop, and pump drivers.
func New(cfg *config.MachineConfig) (*Engine, error) {
	kin, err := kinematics.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	sim := io.NewSimulatedIO()
	sim.SetEndstopTrigger("x", cfg.Axes["x"].MinPosition)
	sim.SetEndstopTrigger("y", cfg.Axes["y"].MinPosition)

	e := &Engine{
		cfg:             cfg,
		sm:              statemachine.New(),
		q:               queue.New(cfg.QueueDepth),
		kin:             kin,
		plan:            planner.New(kin),
		homer:           homing.New(sim, sim),
		mon:             safety.New(sim, kin),
		io:              sim,
		expectedNextSeq: 1,
	}
	e.sm.Transition(statemachine.Idle)
	return e, nil
}

// State returns the engine's current controller state.
func (e *Engine) State() statemachine.State {
	return e.sm.State()
}

func (e *Engine) setState(next statemachine.State) {
	if e.sm.Transition(next) {
		e.mon.OnStateEntered(next)
	}
}

// HandleLine parses and processes one SSG line, returning the reply
// lines to send back (in order). Malformed lines that can't even be
// tokenized still produce one PARSE reply.
func (e *Engine) HandleLine(nowMS int64, line string) []string {
	cmd, err := protocol.ParseLine(line)
	if err != nil {
		perr, _ := err.(*protocol.Error)
		seq := uint64(0)
		hasSeq := false
		if perr != nil && perr.Seq != 0 {
			seq, hasSeq = perr.Seq, true
		}
		return []string{protocol.FormatErr(seq, hasSeq, protocol.ErrParse)}
	}

	e.lastCommandMS = nowMS
	e.heartbeatTripped = false

	if cmd.Seq == 0 {
		// Out-of-band: no sequence check, but the state, limit and
		// queue gates still apply.
		return e.accept(cmd)
	}

	switch {
	case cmd.Seq < e.expectedNextSeq:
		return []string{protocol.FormatOK(cmd.Seq)}
	case cmd.Seq > e.expectedNextSeq:
		return []string{protocol.FormatErr(cmd.Seq, true, protocol.ErrGap)}
	default:
		e.expectedNextSeq++
		return e.accept(cmd)
	}
}

// accept runs the legality/limit/queue gates for a just-sequence-
// validated or out-of-band (N0) command, in the order the spec
// mandates. Out-of-band commands do not update lastAckedSeq.
func (e *Engine) accept(cmd *protocol.Command) []string {
	if !e.legal(cmd.Op) {
		return []string{protocol.FormatErr(cmd.Seq, true, e.legalityError(cmd.Op))}
	}

	if cmd.Op == protocol.OpRapid || cmd.Op == protocol.OpDraw {
		targetX, targetY := e.posX, e.posY
		if cmd.HasX {
			targetX = cmd.X
		}
		if cmd.HasY {
			targetY = cmd.Y
		}
		if err := e.mon.CheckTarget(targetX, targetY); err != nil {
			e.setState(statemachine.Error)
			return []string{protocol.FormatErr(cmd.Seq, true, protocol.ErrLimit)}
		}
		if e.q.Full() {
			return []string{protocol.FormatBusy(e.q.Count(), e.sm.State().String())}
		}
		if err := e.q.Push(cmd); err != nil {
			return []string{protocol.FormatBusy(e.q.Count(), e.sm.State().String())}
		}
	}

	replies := e.execute(cmd)
	if cmd.Seq != 0 {
		e.lastAckedSeq = cmd.Seq
	}
	return replies
}

// legal applies the per-state acceptance gates described in §3/§4.2.
func (e *Engine) legal(op protocol.Op) bool {
	switch op {
	case protocol.OpHome:
		return e.sm.AllowsHome()
	case protocol.OpFlowOn, protocol.OpFlowOff:
		return e.sm.AllowsFlow()
	case protocol.OpRapid, protocol.OpDraw:
		return e.sm.AllowsMotion()
	case protocol.OpReportPos, protocol.OpReportStatus:
		return true
	}
	return false
}

// legalityError picks the rejection code for a command the state
// machine refused. Idle (never homed) reports NOT_HOMED; every other
// illegal state reports BUSY_STATE.
func (e *Engine) legalityError(op protocol.Op) protocol.ErrorCode {
	if (op == protocol.OpRapid || op == protocol.OpDraw) && e.sm.State() == statemachine.Idle {
		return protocol.ErrNotHomed
	}
	return protocol.ErrBusyState
}

// execute runs a command that has already passed all gates, draining
// the motion entry accept() queued immediately — the engine has no
// real step-pulse clock, so "ticking the planner" happens
// synchronously within this call.
func (e *Engine) execute(cmd *protocol.Command) []string {
	switch cmd.Op {
	case protocol.OpHome:
		return e.executeHome(cmd)
	case protocol.OpFlowOn:
		return e.executeFlowOn(cmd)
	case protocol.OpFlowOff:
		return e.executeFlowOff(cmd)
	case protocol.OpRapid, protocol.OpDraw:
		return e.executeMotion(cmd)
	case protocol.OpReportPos:
		return []string{protocol.FormatOK(cmd.Seq), protocol.FormatPos(e.posX, e.posY)}
	case protocol.OpReportStatus:
		return []string{protocol.FormatOK(cmd.Seq), e.statusLine()}
	}
	return nil
}

func (e *Engine) executeHome(cmd *protocol.Command) []string {
	e.mon.ForcePumpOff()
	e.sauceOn, e.flowDuty = false, 0
	e.setState(statemachine.Homing)

	xCfg, yCfg := e.cfg.Axes["x"], e.cfg.Axes["y"]
	err := homing.HomeAll(e.homer,
		homing.AxisParams{FastFeedMMMin: xCfg.HomingFeed, SlowFeedMMMin: xCfg.HomingSlow, BackoffMM: xCfg.HomingBack},
		homing.AxisParams{FastFeedMMMin: yCfg.HomingFeed, SlowFeedMMMin: yCfg.HomingSlow, BackoffMM: yCfg.HomingBack},
	)
	if err != nil {
		log.Error().Err(err).Msg("homing failed")
		e.setState(statemachine.Error)
		return []string{protocol.FormatErr(cmd.Seq, true, protocol.ErrHomingFail)}
	}

	e.posX, e.posY = 0, 0
	e.expectedNextSeq = 1
	e.lastAckedSeq = 0
	e.setState(statemachine.Ready)
	return []string{protocol.FormatOK(cmd.Seq)}
}

func (e *Engine) executeFlowOn(cmd *protocol.Command) []string {
	duty := e.cfg.Flow.DefaultDuty
	if cmd.HasS {
		duty = cmd.S
	}
	e.flowDuty = duty
	e.sauceOn = true
	e.io.SetDuty(duty)
	return []string{protocol.FormatOK(cmd.Seq)}
}

func (e *Engine) executeFlowOff(cmd *protocol.Command) []string {
	e.flowDuty = 0
	e.sauceOn = false
	e.io.SetDuty(0)
	return []string{protocol.FormatOK(cmd.Seq)}
}

func (e *Engine) executeMotion(cmd *protocol.Command) []string {
	e.q.Pop() // drain the entry accept() just queued; the planner tick is synchronous

	targetX, targetY := e.posX, e.posY
	if cmd.HasX {
		targetX = cmd.X
	}
	if cmd.HasY {
		targetY = cmd.Y
	}

	if e.sm.State() == statemachine.Ready {
		e.setState(statemachine.Printing)
	}

	ok := protocol.FormatOK(cmd.Seq)
	if targetX == e.posX && targetY == e.posY {
		return []string{ok} // no-op move, still acked
	}

	_ = e.plan.Plan(e.posX, e.posY, targetX, targetY, cmd.F)
	e.posX, e.posY = targetX, targetY
	e.io.SetPosition("x", targetX)
	e.io.SetPosition("y", targetY)
	return []string{ok}
}

func (e *Engine) statusLine() string {
	return protocol.FormatStatus(e.sm.State().String(), e.q.Count(), e.flowDuty, e.sauceOn, e.lastAckedSeq)
}

// Telemetry returns the current unsolicited telemetry frame.
func (e *Engine) Telemetry() protocol.Telemetry {
	var t protocol.Telemetry
	t.Pos.X, t.Pos.Y = e.posX, e.posY
	t.Flow = e.flowDuty
	t.Q = e.q.Count()
	t.State = e.sm.State().String()
	return t
}

// TickHeartbeat checks the heartbeat watchdog: if Printing and more
// than HeartbeatTimeMS has elapsed since the last command, the
// controller pauses and forces the pump off. Returns the async
// HEARTBEAT error reply if the watchdog just tripped, or nil.
func (e *Engine) TickHeartbeat(nowMS int64) *string {
	if e.sm.State() != statemachine.Printing || e.heartbeatTripped {
		return nil
	}
	if nowMS-e.lastCommandMS <= int64(e.cfg.HeartbeatTimeMS) {
		return nil
	}
	e.heartbeatTripped = true
	e.setState(statemachine.Paused)
	line := protocol.FormatErr(0, false, protocol.ErrHeartbeat)
	return &line
}

// OnDisconnect forces the pump off, per the safety monitor's
// disconnect trigger.
func (e *Engine) OnDisconnect() {
	e.mon.OnDisconnect()
}
