package cpu

import (
	"log/slog"

	"dotmatrix/addr"
	"dotmatrix/memory"
)

// CPU drives the fetch/execute loop against the bus. Every memory
// access it performs moves the shared clock by one machine-cycle, so
// the PPU and Timer stay in lockstep with instruction progress.
type CPU struct {
	regs Registers
	bus  *memory.Bus

	booted       bool
	halted       bool
	imeScheduled bool

	// current opcode and its address, kept for error reporting
	currentOpcode byte
	opAddr        uint16
}

// New creates a CPU attached to the bus. Execution starts in the Boot
// state: the first Step applies warm-boot values unless a boot
// overlay is active, in which case the firmware at 0x0000 runs first.
func New(bus *memory.Bus) *CPU {
	return &CPU{bus: bus}
}

// Registers exposes the register file, used by tests and debug dumps.
func (c *CPU) Registers() *Registers {
	return &c.regs
}

// Halted reports whether the CPU is parked on a HALT.
func (c *CPU) Halted() bool {
	return c.halted
}

// Step advances by one macro-step: the boot handoff, one interrupt
// service, one halted idle cycle, or one full instruction.
func (c *CPU) Step() error {
	if !c.booted {
		if !c.bus.BootActive() {
			c.applyWarmBoot()
		}
		c.booted = true
		return nil
	}

	if c.halted {
		if c.bus.Pending() == 0 {
			c.bus.Tick()
			return nil
		}
		c.halted = false
		// With IME clear the pending interrupt only wakes the CPU;
		// the halt-bug double fetch is not modelled.
		if !c.bus.InterruptsEnabled() {
			return c.runInstruction()
		}
	}

	if c.bus.InterruptsEnabled() && c.bus.Pending() != 0 {
		c.serviceInterrupt()
		return nil
	}

	return c.runInstruction()
}

func (c *CPU) runInstruction() error {
	enableIME := c.imeScheduled

	c.opAddr = c.regs.PC
	c.currentOpcode = c.fetchByte()
	if err := c.execute(Decode(c.currentOpcode)); err != nil {
		return err
	}

	// EI takes effect only after the instruction that follows it.
	if enableIME && c.imeScheduled {
		c.bus.EnableInterrupts()
		c.imeScheduled = false
	}
	return nil
}

// serviceInterrupt dispatches the highest-priority pending interrupt:
// two internal cycles, the PC push, the vector load cycle. Five
// machine-cycles in total, IME off, the flag bit acknowledged.
func (c *CPU) serviceInterrupt() {
	c.bus.Tick()
	c.bus.Tick()

	c.pushStack(c.regs.PC)

	pending := c.bus.Pending()
	for _, handler := range addr.Handlers {
		if pending&byte(handler.Interrupt) != 0 {
			c.bus.Acknowledge(handler.Interrupt)
			c.regs.PC = handler.Addr
			break
		}
	}

	c.bus.Tick()
}

// applyWarmBoot loads the post-firmware register state for a DMG
// (A=0x01) and the IO register bytes the firmware leaves behind, so
// cartridges start from the documented environment without a boot
// image.
func (c *CPU) applyWarmBoot() {
	c.regs.A = 0x01
	c.regs.F = 0xB0
	c.regs.B = 0x00
	c.regs.C = 0x13
	c.regs.D = 0x00
	c.regs.E = 0xD8
	c.regs.H = 0x01
	c.regs.L = 0x4D
	c.regs.SP = 0xFFFE
	c.regs.PC = 0x0100

	c.bus.Timer().Seed(0xABCC)

	bus := c.bus
	bus.Write(addr.TMA, 0x00)
	bus.Write(addr.TAC, 0x00)
	bus.Write(addr.IF, 0xE1)
	bus.Write(addr.LCDC, 0x91)
	bus.Write(addr.SCY, 0x00)
	bus.Write(addr.SCX, 0x00)
	bus.Write(addr.LYC, 0x00)
	bus.Write(addr.BGP, 0xFC)
	bus.Write(addr.OBP0, 0xFF)
	bus.Write(addr.OBP1, 0xFF)
	bus.Write(addr.WY, 0x00)
	bus.Write(addr.WX, 0x00)
	bus.Write(addr.IE, 0x00)

	slog.Debug("Warm boot applied", "pc", c.regs.PC, "sp", c.regs.SP)
}
