// Package dispatch implements the SHE command state-gate and router
// (spec.md §4.I): it validates UID-latch and secure-boot preconditions
// before any handler runs, routes to the A-H components, and normalizes
// errors at the boundary.
package dispatch

import (
	"context"

	"github.com/barnettlynn/she-core/internal/applog"
	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/keyupdate"
	"github.com/barnettlynn/she-core/internal/policy"
	"github.com/barnettlynn/she-core/internal/ratelimit"
	"github.com/barnettlynn/she-core/internal/rng"
	"github.com/barnettlynn/she-core/internal/secureboot"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

// gatedAfterSetUID is the allowlist of actions permitted while sb_state is
// not yet SUCCESS (spec.md §3 invariant, §8 invariant 3).
var gatedAfterSetUID = map[sheconst.Action]bool{
	sheconst.SecureBootInit:   true,
	sheconst.SecureBootUpdate: true,
	sheconst.SecureBootFinish: true,
	sheconst.GetStatus:        true,
}

// Dispatcher routes decoded requests to the A-H components for one client,
// applying the dispatcher-level preconditions first.
type Dispatcher struct {
	Store  keystore.Store
	Client string

	// Limiter is optional; when set, every command is gated by it and a
	// client over budget gets sheerr.Busy before any handler runs.
	Limiter *ratelimit.Gate

	// Policy supplies per-slot default/override flags for the paths that
	// write a slot without an authenticated flags field of their own (see
	// keyupdate.Protocol.Policy / LOAD_PLAIN_KEY). The zero Policy applies
	// flags 0 everywhere, matching a deployment with no policy file.
	Policy policy.Policy
}

// Handle runs one SHE command. req is the opcode-specific payload with no
// framing; resp is the opcode-specific response payload, valid only when
// the returned code is sheerr.NoError. Every non-nil error is normalized
// through sheerr.CodeOf before being returned, matching the single `rc`
// byte a real transport would write back (spec.md §6).
func (d *Dispatcher) Handle(ctx context.Context, sc *shectx.Context, action sheconst.Action, req []byte) ([]byte, sheerr.Code) {
	if d.Limiter != nil && !d.Limiter.Allow(d.Client) {
		applog.Dispatch(d.Client, uint16(action), byte(sheerr.Busy))
		return nil, sheerr.Busy
	}

	if err := d.precheck(sc, action); err != nil {
		code := sheerr.CodeOf(err)
		applog.Dispatch(d.Client, uint16(action), byte(code))
		return nil, code
	}

	resp, err := d.route(ctx, sc, action, req)
	if err != nil {
		if secureBootAction(action) && sheerr.CodeOf(err) != sheerr.NoSecureBoot {
			sc.ResetBoot()
		}
		code := sheerr.CodeOf(err)
		applog.Dispatch(d.Client, uint16(action), byte(code))
		return nil, code
	}
	applog.Dispatch(d.Client, uint16(action), byte(sheerr.NoError))
	return resp, sheerr.NoError
}

func (d *Dispatcher) precheck(sc *shectx.Context, action sheconst.Action) error {
	if action == sheconst.SetUID {
		if sc.UIDSet {
			return sheerr.New(sheerr.SequenceError)
		}
		return nil
	}
	if !sc.UIDSet {
		return sheerr.New(sheerr.SequenceError)
	}
	if sc.BootState != shectx.BootSuccess && !gatedAfterSetUID[action] {
		return sheerr.New(sheerr.SequenceError)
	}
	return nil
}

func secureBootAction(action sheconst.Action) bool {
	switch action {
	case sheconst.SecureBootInit, sheconst.SecureBootUpdate, sheconst.SecureBootFinish:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) route(ctx context.Context, sc *shectx.Context, action sheconst.Action, req []byte) ([]byte, error) {
	switch action {
	case sheconst.SetUID:
		if len(req) != sheconst.UIDSize {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		copy(sc.UID[:], req)
		sc.UIDSet = true
		return nil, nil

	case sheconst.SecureBootInit:
		if len(req) != 4 {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		size := be32(req)
		eng := &secureboot.Engine{Store: d.Store, Client: d.Client}
		return nil, eng.Init(ctx, sc, size)

	case sheconst.SecureBootUpdate:
		eng := &secureboot.Engine{Store: d.Store, Client: d.Client}
		return nil, eng.Update(sc, req)

	case sheconst.SecureBootFinish:
		eng := &secureboot.Engine{Store: d.Store, Client: d.Client}
		return nil, eng.Finish(ctx, sc)

	case sheconst.GetStatus:
		reg := sc.SREG()
		return []byte{byte(reg >> 8), byte(reg)}, nil

	case sheconst.LoadKey:
		if len(req) != 64 {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		var kreq keyupdate.Request
		copy(kreq.M1[:], req[0:16])
		copy(kreq.M2[:], req[16:48])
		copy(kreq.M3[:], req[48:64])
		proto := &keyupdate.Protocol{Store: d.Store, Client: d.Client}
		resp, ramKeyPlain, err := proto.LoadKey(ctx, sc.UID, kreq)
		if err != nil {
			return nil, err
		}
		if ramKeyPlain {
			sc.RAMKeyPlain = true
		}
		out := make([]byte, 0, 48)
		out = append(out, resp.M4[:]...)
		out = append(out, resp.M5[:]...)
		return out, nil

	case sheconst.LoadPlainKey:
		if len(req) != sheconst.KeySize {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		var key [sheconst.KeySize]byte
		copy(key[:], req)
		proto := &keyupdate.Protocol{Store: d.Store, Client: d.Client, Policy: d.Policy}
		if err := proto.LoadPlainKey(ctx, key); err != nil {
			return nil, err
		}
		sc.RAMKeyPlain = true
		return nil, nil

	case sheconst.ExportRAMKey:
		proto := &keyupdate.Protocol{Store: d.Store, Client: d.Client}
		resp, err := proto.ExportRAMKey(ctx, sc.UID, sc.RAMKeyPlain)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 112)
		out = append(out, resp.M1[:]...)
		out = append(out, resp.M2[:]...)
		out = append(out, resp.M3[:]...)
		out = append(out, resp.M4[:]...)
		out = append(out, resp.M5[:]...)
		return out, nil

	case sheconst.InitRND:
		eng := &rng.Engine{Store: d.Store, Client: d.Client}
		return nil, eng.Init(ctx, sc)

	case sheconst.RND:
		eng := &rng.Engine{Store: d.Store, Client: d.Client}
		out, err := eng.Next(sc)
		if err != nil {
			return nil, err
		}
		return out[:], nil

	case sheconst.ExtendSeed:
		if len(req) != sheconst.KeySize {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		var entropy [sheconst.KeySize]byte
		copy(entropy[:], req)
		eng := &rng.Engine{Store: d.Store, Client: d.Client}
		return nil, eng.ExtendSeed(ctx, sc, entropy)

	case sheconst.EncECB, sheconst.DecECB:
		if len(req) < 1 {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		op := bulkcrypto.OpEncECB
		if action == sheconst.DecECB {
			op = bulkcrypto.OpDecECB
		}
		var iv [sheconst.KeySize]byte
		return bulkcrypto.Run(ctx, d.Store, d.Client, sheconst.Slot(req[0]), op, iv, req[1:])

	case sheconst.EncCBC, sheconst.DecCBC:
		if len(req) < 1+sheconst.KeySize {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		op := bulkcrypto.OpEncCBC
		if action == sheconst.DecCBC {
			op = bulkcrypto.OpDecCBC
		}
		var iv [sheconst.KeySize]byte
		copy(iv[:], req[1:1+sheconst.KeySize])
		return bulkcrypto.Run(ctx, d.Store, d.Client, sheconst.Slot(req[0]), op, iv, req[1+sheconst.KeySize:])

	case sheconst.GenMAC:
		if len(req) < 1 {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		tag, err := bulkcrypto.GenMAC(ctx, d.Store, d.Client, sheconst.Slot(req[0]), req[1:])
		if err != nil {
			return nil, err
		}
		return tag[:], nil

	case sheconst.VerifyMAC:
		if len(req) < 1+sheconst.KeySize {
			return nil, sheerr.New(sheerr.BadArgs)
		}
		var tag [sheconst.KeySize]byte
		copy(tag[:], req[1:1+sheconst.KeySize])
		valid, err := bulkcrypto.VerifyMAC(ctx, d.Store, d.Client, sheconst.Slot(req[0]), req[1+sheconst.KeySize:], tag)
		if err != nil {
			return nil, err
		}
		if valid {
			return []byte{0}, nil
		}
		return []byte{1}, nil

	default:
		return nil, sheerr.New(sheerr.BadArgs)
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
