// Package instruments defines the instrument boundary used by the control
// server: identity, supported actions and a registry keyed by stable id.
//
// Drivers live in subpackages (synth, temp, voltage, shutter) and talk to
// their device through a Transport, normally a *line.Conn.
package instruments
