package main

import (
	"fmt"
	"os"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/fatih/color"
)

var (
	labelColor = color.New(color.FgCyan)
	valueColor = color.New(color.FgHiWhite, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
)

func row(label string, format string, args ...any) {
	labelColor.Printf("%-14s", label)
	valueColor.Printf(format, args...)
	fmt.Println()
}

func printPlan(target float64, res adf4350.Result) {
	p := res.Params
	row("target", "%s", instruments.FormatFrequency(target))
	row("frequency", "%s", instruments.FormatFrequency(res.Frequency))
	errHz := res.Error(target)
	if errHz == 0 {
		row("error", "0 Hz")
	} else {
		labelColor.Printf("%-14s", "error")
		warnColor.Printf("%+.6g Hz", errHz)
		fmt.Println()
	}
	row("resolution", "%.6g Hz", res.Resolution())
	row("f_vco", "%s", instruments.FormatFrequency(p.VCOFrequency))
	row("f_pfd", "%s", instruments.FormatFrequency(p.PFDFrequency))
	row("output div", "%d (stage %d)", 1<<p.DividerStage, p.DividerStage)
	row("prescaler", "%s", prescalerName(p.Prescaler))
	row("r", "%d", p.RCounter)
	row("n", "%d + %d/%d", p.NInt, p.NFract, p.NMod)
	row("band select", "%d", p.BandSelectDivider)
	for i := adf4350.NumRegisters - 1; i >= 0; i-- {
		row(fmt.Sprintf("reg%d", i), "0x%08x", res.Registers[i])
	}
	row("hex", "%s", res.Registers.Hex())
}

func prescalerName(eightNine bool) string {
	if eightNine {
		return "8/9"
	}
	return "4/5"
}

func printStep(step, addr string) {
	okColor.Printf("%s ok", step)
	fmt.Printf(" %s\n", addr)
}

func printLocked(locked bool) {
	labelColor.Printf("%-14s", "locked")
	if locked {
		okColor.Println("yes")
		return
	}
	warnColor.Println("no")
}

func printError(err error) {
	errColor.Fprint(os.Stderr, "synthplan: ")
	fmt.Fprintln(os.Stderr, err)
}
