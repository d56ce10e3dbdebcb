package synth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/instruments"
)

// Execute applies one synthesizer action.
func (s *Synth) Execute(ctx context.Context, action string, args map[string]string) (instruments.Result, error) {
	switch strings.TrimSpace(action) {
	case "version":
		v, err := s.Version(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(v, map[string]any{"version": v}), nil
	case "ping":
		ok := s.Ping(ctx)
		return instruments.OK(fmt.Sprintf("ping ok=%t", ok), map[string]any{"ok": ok}), nil
	case "locked":
		locked, err := s.Locked(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(fmt.Sprintf("locked=%t", locked), map[string]any{"locked": locked}), nil
	case "plan", "set_frequency":
		target, err := instruments.ParseFrequency(args["frequency"])
		if err != nil {
			return instruments.Result{}, err
		}
		start := false
		if raw := strings.TrimSpace(args["start"]); raw != "" && action == "set_frequency" {
			if start, err = strconv.ParseBool(raw); err != nil {
				return instruments.Result{}, fmt.Errorf("%w: start=%q", instruments.ErrInvalidArgument, raw)
			}
		}
		var res adf4350.Result
		switch {
		case action == "plan":
			res, err = s.Plan(target)
		case start:
			res, err = s.SetFrequencyAndStart(ctx, target)
		default:
			res, err = s.SetFrequency(target)
		}
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(
			fmt.Sprintf("%s registers=%s", instruments.FormatFrequency(res.Frequency), res.Registers.Hex()),
			PlanData(target, res),
		), nil
	case "start", "save":
		img, err := imageArg(args)
		if err != nil {
			return instruments.Result{}, err
		}
		if action == "start" {
			err = s.Start(ctx, img)
		} else {
			err = s.Save(ctx, img)
		}
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK("ok "+action, nil), nil
	case "set":
		name := strings.TrimSpace(args["name"])
		value, ok := args["value"]
		if name == "" || !ok {
			return instruments.Result{}, fmt.Errorf("%w: set needs name and value", instruments.ErrInvalidArgument)
		}
		if err := s.Set(name, value); err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(fmt.Sprintf("ok set %s=%s", name, value), nil), nil
	case "get":
		name := strings.TrimSpace(args["name"])
		v, err := s.Get(name)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(fmt.Sprintf("%s=%v", name, v), map[string]any{name: v}), nil
	case "config":
		values := s.Config().Values()
		return instruments.OK(fmt.Sprintf("%d settings", len(values)), values), nil
	default:
		return instruments.Result{}, fmt.Errorf("%w: %s %q", instruments.ErrUnknownAction, s.meta.ID, action)
	}
}

func imageArg(args map[string]string) (*adf4350.Image, error) {
	raw := strings.TrimSpace(args["registers"])
	if raw == "" {
		return nil, nil
	}
	img, err := adf4350.ParseImage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", instruments.ErrInvalidArgument, err)
	}
	return &img, nil
}

// PlanData renders a plan as result data.
func PlanData(target float64, res adf4350.Result) map[string]any {
	p := res.Params
	return map[string]any{
		"target_hz":           target,
		"frequency_hz":        res.Frequency,
		"error_hz":            res.Error(target),
		"resolution_hz":       res.Resolution(),
		"registers":           res.Registers.Hex(),
		"vco_hz":              p.VCOFrequency,
		"pfd_hz":              p.PFDFrequency,
		"divider_stage":       p.DividerStage,
		"prescaler":           p.Prescaler,
		"r_counter":           p.RCounter,
		"n_int":               p.NInt,
		"n_fract":             p.NFract,
		"n_mod":               p.NMod,
		"band_select_divider": p.BandSelectDivider,
	}
}
