package ws

import (
	"context"
	"encoding/json"
	"errors"

	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
	"pixeltycoon/internal/sim/game"
)

func (s *Server) handleIntent(ctx context.Context, raw []byte) protocol.ResultMsg {
	// Type errors leave the other fields decoded, so the id can still be echoed.
	var in protocol.IntentMsg
	decErr := json.Unmarshal(raw, &in)
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              in.ID,
		Action:          in.Action,
	}
	fail := func(code, msg string) protocol.ResultMsg {
		res.OK = false
		res.Code = code
		res.Message = msg
		return res
	}

	if err := protocol.ValidateIntent(raw); err != nil {
		return fail(protocol.ErrProtoBadRequest, err.Error())
	}
	if decErr != nil {
		return fail(protocol.ErrBadRequest, decErr.Error())
	}
	if in.ProtocolVersion != protocol.Version {
		return fail(protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	var (
		r   game.Result
		err error
	)
	switch in.Action {
	case protocol.ActionClick:
		r, err = s.game.Click(ctx)
	case protocol.ActionBuyBusiness:
		r, err = s.game.BuyBusiness(ctx, *in.Index)
	case protocol.ActionBuyUpgrade:
		r, err = s.game.BuyUpgrade(ctx, catalogs.Category(in.Category), in.UpgradeID)
	case protocol.ActionPrestige:
		r, err = s.game.Prestige(ctx)
	case protocol.ActionClaimOffline:
		r, err = s.game.ClaimOffline(ctx)
	case protocol.ActionSetSettings:
		r, err = s.game.SetSettings(ctx, economy.Settings{
			Sound:    in.Settings.Sound,
			Music:    in.Settings.Music,
			AutoSave: in.Settings.AutoSave,
		})
	case protocol.ActionExport:
		save, xerr := s.game.Export(ctx)
		if xerr != nil {
			return fail(protocol.ErrInternal, xerr.Error())
		}
		b, xerr := snapshot.Encode(save)
		if xerr != nil {
			return fail(protocol.ErrInternal, xerr.Error())
		}
		res.OK = true
		res.Save = b
		return res
	case protocol.ActionImport:
		save, derr := snapshot.Decode(in.Save)
		if derr != nil {
			return fail(protocol.ErrMalformedSave, derr.Error())
		}
		r, err = s.game.Import(ctx, save)
		if errors.Is(err, snapshot.ErrMalformed) {
			return fail(protocol.ErrMalformedSave, err.Error())
		}
	case protocol.ActionReset:
		r, err = s.game.Reset(ctx)
	case protocol.ActionBuyShop:
		if _, ok := s.cfg.Catalogs.ShopItem(in.ItemID); !ok {
			return fail(protocol.ErrInvalidTarget, "unknown shop item")
		}
		return fail(protocol.ErrUnavailable, "shop purchases are not available")
	default:
		return fail(protocol.ErrBadRequest, "unknown action")
	}
	if err != nil {
		return fail(protocol.ErrInternal, err.Error())
	}

	res.OK = r.OK
	res.Earned = r.Earned
	if r.Cue {
		res.Cue = cueName(in.Action)
	}
	if !r.OK {
		code, msg := s.failureCode(in, r.View)
		res.Code = code
		res.Message = msg
	}
	return res
}

// failureCode explains a rule no-op from the state the loop returned with it.
func (s *Server) failureCode(in protocol.IntentMsg, v economy.View) (string, string) {
	switch in.Action {
	case protocol.ActionBuyBusiness:
		if *in.Index < 0 || *in.Index >= len(v.State.Businesses) {
			return protocol.ErrInvalidTarget, "unknown business"
		}
		return protocol.ErrNoResource, "not enough coins"
	case protocol.ActionBuyUpgrade:
		for _, u := range v.State.Upgrades[catalogs.Category(in.Category)] {
			if u.ID != in.UpgradeID {
				continue
			}
			if u.Purchased {
				return protocol.ErrConflict, "already purchased"
			}
			return protocol.ErrNoResource, "not enough coins"
		}
		return protocol.ErrInvalidTarget, "unknown upgrade"
	case protocol.ActionPrestige:
		return protocol.ErrBlocked, "prestige requirement not met"
	case protocol.ActionClaimOffline:
		return protocol.ErrNoResource, "no offline earnings to claim"
	}
	return protocol.ErrInternal, "intent not applied"
}

func cueName(action string) string {
	switch action {
	case protocol.ActionClick:
		return string(economy.CueClick)
	case protocol.ActionBuyBusiness, protocol.ActionBuyUpgrade:
		return string(economy.CuePurchase)
	case protocol.ActionPrestige:
		return string(economy.CuePrestige)
	}
	return ""
}
