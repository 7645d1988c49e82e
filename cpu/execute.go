package cpu

import (
	"fmt"

	"dotmatrix/bit"
)

// ErrUndefinedOpcode is wrapped into the error returned when one of
// the 11 holes in the primary opcode page is executed. Real hardware
// locks up; we stop the engine.
var ErrUndefinedOpcode = fmt.Errorf("undefined opcode")

// fetchByte reads the byte at PC, spending one machine-cycle.
func (c *CPU) fetchByte() uint8 {
	value := c.bus.TickRead(c.regs.PC)
	c.regs.PC++
	return value
}

// fetchWord reads a little-endian word at PC, two machine-cycles.
func (c *CPU) fetchWord() uint16 {
	low := c.fetchByte()
	high := c.fetchByte()
	return bit.Combine(high, low)
}

func (c *CPU) reg8(r Reg) *uint8 {
	switch r {
	case regA:
		return &c.regs.A
	case regB:
		return &c.regs.B
	case regC:
		return &c.regs.C
	case regD:
		return &c.regs.D
	case regE:
		return &c.regs.E
	case regH:
		return &c.regs.H
	default:
		return &c.regs.L
	}
}

func (c *CPU) pairValue(r Reg) uint16 {
	switch r {
	case regAF:
		return c.regs.AF()
	case regBC:
		return c.regs.BC()
	case regDE:
		return c.regs.DE()
	case regHL:
		return c.regs.HL()
	default:
		return c.regs.SP
	}
}

func (c *CPU) setPair(r Reg, value uint16) {
	switch r {
	case regAF:
		c.regs.SetAF(value)
	case regBC:
		c.regs.SetBC(value)
	case regDE:
		c.regs.SetDE(value)
	case regHL:
		c.regs.SetHL(value)
	default:
		c.regs.SP = value
	}
}

// operand8 resolves a byte-sized operand, spending one machine-cycle
// per byte that crosses the bus. Register reads are free.
func (c *CPU) operand8(op Operand) uint8 {
	switch op.Kind {
	case operandReg:
		return *c.reg8(op.Reg)
	case operandMem:
		return c.bus.TickRead(c.pairValue(op.Reg))
	case operandImm:
		return c.fetchByte()
	case operandHighImm:
		return c.bus.TickRead(0xFF00 | uint16(c.fetchByte()))
	case operandHighC:
		return c.bus.TickRead(0xFF00 | uint16(c.regs.C))
	default: // operandMemImm
		return c.bus.TickRead(c.fetchWord())
	}
}

// writeOperand8 is the store counterpart of operand8.
func (c *CPU) writeOperand8(op Operand, value uint8) {
	switch op.Kind {
	case operandReg:
		*c.reg8(op.Reg) = value
	case operandMem:
		c.bus.TickWrite(c.pairValue(op.Reg), value)
	case operandHighImm:
		c.bus.TickWrite(0xFF00|uint16(c.fetchByte()), value)
	case operandHighC:
		c.bus.TickWrite(0xFF00|uint16(c.regs.C), value)
	default: // operandMemImm
		c.bus.TickWrite(c.fetchWord(), value)
	}
}

func (c *CPU) condition(cond Cond) bool {
	switch cond {
	case condNZ:
		return !c.regs.isSetFlag(zeroFlag)
	case condZ:
		return c.regs.isSetFlag(zeroFlag)
	case condNC:
		return !c.regs.isSetFlag(carryFlag)
	case condC:
		return c.regs.isSetFlag(carryFlag)
	default:
		return true
	}
}

// pushStack writes a word below SP, high byte first. Two cycles; the
// caller pays the pre-decrement internal cycle.
func (c *CPU) pushStack(value uint16) {
	c.regs.SP--
	c.bus.TickWrite(c.regs.SP, bit.High(value))
	c.regs.SP--
	c.bus.TickWrite(c.regs.SP, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.TickRead(c.regs.SP)
	c.regs.SP++
	high := c.bus.TickRead(c.regs.SP)
	c.regs.SP++
	return bit.Combine(high, low)
}

// execute runs one decoded instruction. All timing is implicit: one
// machine-cycle per bus access, plus the internal cycles spent here
// as bare bus ticks.
func (c *CPU) execute(instr Instruction) error {
	switch instr.Op {
	case opNOP:

	case opLD:
		if instr.Dst.Kind == operandPair {
			c.setPair(instr.Dst.Reg, c.fetchWord())
			break
		}
		c.writeOperand8(instr.Dst, c.operand8(instr.Src))

	case opLDI:
		c.writeOperand8(instr.Dst, c.operand8(instr.Src))
		c.regs.SetHL(c.regs.HL() + 1)

	case opLDD:
		c.writeOperand8(instr.Dst, c.operand8(instr.Src))
		c.regs.SetHL(c.regs.HL() - 1)

	case opLDSP:
		switch {
		case instr.Dst.Kind == operandMemImm:
			// LD (nn), SP
			address := c.fetchWord()
			c.bus.TickWrite(address, bit.Low(c.regs.SP))
			c.bus.TickWrite(address+1, bit.High(c.regs.SP))
		case instr.Dst.Reg == regSP:
			// LD SP, HL
			c.bus.Tick()
			c.regs.SP = c.regs.HL()
		default:
			// LD HL, SP+n
			offset := c.fetchByte()
			c.bus.Tick()
			c.regs.SetHL(c.addSignedToSP(offset))
		}

	case opINC:
		switch instr.Dst.Kind {
		case operandPair:
			c.bus.Tick()
			c.setPair(instr.Dst.Reg, c.pairValue(instr.Dst.Reg)+1)
		case operandMem:
			address := c.pairValue(instr.Dst.Reg)
			c.bus.TickWrite(address, c.inc8(c.bus.TickRead(address)))
		default:
			r := c.reg8(instr.Dst.Reg)
			*r = c.inc8(*r)
		}

	case opDEC:
		switch instr.Dst.Kind {
		case operandPair:
			c.bus.Tick()
			c.setPair(instr.Dst.Reg, c.pairValue(instr.Dst.Reg)-1)
		case operandMem:
			address := c.pairValue(instr.Dst.Reg)
			c.bus.TickWrite(address, c.dec8(c.bus.TickRead(address)))
		default:
			r := c.reg8(instr.Dst.Reg)
			*r = c.dec8(*r)
		}

	case opADD:
		c.addToA(c.operand8(instr.Src))
	case opADC:
		c.adcToA(c.operand8(instr.Src))
	case opSUB:
		c.subFromA(c.operand8(instr.Src))
	case opSBC:
		c.sbcFromA(c.operand8(instr.Src))
	case opAND:
		c.andWithA(c.operand8(instr.Src))
	case opXOR:
		c.xorWithA(c.operand8(instr.Src))
	case opOR:
		c.orWithA(c.operand8(instr.Src))
	case opCP:
		c.compareToA(c.operand8(instr.Src))

	case opADDHL:
		c.bus.Tick()
		c.addToHL(c.pairValue(instr.Src.Reg))

	case opADDSP:
		offset := c.fetchByte()
		c.bus.Tick()
		c.bus.Tick()
		c.regs.SP = c.addSignedToSP(offset)

	case opPUSH:
		value := c.pairValue(instr.Src.Reg)
		c.bus.Tick()
		c.pushStack(value)

	case opPOP:
		c.setPair(instr.Dst.Reg, c.popStack())

	case opJP:
		target := c.fetchWord()
		if c.condition(instr.Cond) {
			c.bus.Tick()
			c.regs.PC = target
		}

	case opJPHL:
		c.regs.PC = c.regs.HL()

	case opJR:
		offset := c.fetchByte()
		if c.condition(instr.Cond) {
			c.bus.Tick()
			c.regs.PC = uint16(int32(c.regs.PC) + int32(int8(offset)))
		}

	case opCALL:
		target := c.fetchWord()
		if c.condition(instr.Cond) {
			c.bus.Tick()
			c.pushStack(c.regs.PC)
			c.regs.PC = target
		}

	case opRET:
		if instr.Cond != condNone {
			// the condition check costs a cycle even when not taken
			c.bus.Tick()
			if !c.condition(instr.Cond) {
				break
			}
		}
		c.regs.PC = c.popStack()
		c.bus.Tick()

	case opRETI:
		c.regs.PC = c.popStack()
		c.bus.Tick()
		c.bus.EnableInterrupts()

	case opRST:
		c.bus.Tick()
		c.pushStack(c.regs.PC)
		c.regs.PC = instr.Vec

	case opCB:
		c.executeCB(DecodeCB(c.fetchByte()))

	case opDI:
		c.bus.DisableInterrupts()
		c.imeScheduled = false
	case opEI:
		c.imeScheduled = true

	case opDAA:
		c.daa()
	case opCPL:
		c.regs.A = ^c.regs.A
		c.regs.setFlag(subFlag)
		c.regs.setFlag(halfCarryFlag)
	case opSCF:
		c.regs.setFlag(carryFlag)
		c.regs.resetFlag(subFlag)
		c.regs.resetFlag(halfCarryFlag)
	case opCCF:
		c.regs.setFlagToCondition(carryFlag, !c.regs.isSetFlag(carryFlag))
		c.regs.resetFlag(subFlag)
		c.regs.resetFlag(halfCarryFlag)

	case opRLCA:
		c.rlca()
	case opRRCA:
		c.rrca()
	case opRLA:
		c.rla()
	case opRRA:
		c.rra()

	case opHALT:
		c.halted = true
	case opSTOP:
		// STOP is treated as HALT: no input clocking is modelled, so
		// the wake-up conditions collapse to the same thing.
		c.halted = true

	case opUndefined:
		return fmt.Errorf("%w: 0x%02X at 0x%04X", ErrUndefinedOpcode, c.currentOpcode, c.opAddr)
	}

	return nil
}

func (c *CPU) executeCB(instr CBInstruction) {
	var value uint8
	if instr.Target.Kind == operandMem {
		value = c.bus.TickRead(c.pairValue(instr.Target.Reg))
	} else {
		value = *c.reg8(instr.Target.Reg)
	}

	if instr.Op == cbBIT {
		c.cbTestBit(value, instr.Bit)
		return
	}

	var result uint8
	switch instr.Op {
	case cbRLC:
		result = c.cbRotateLeft(value)
	case cbRRC:
		result = c.cbRotateRight(value)
	case cbRL:
		result = c.cbRotateLeftThroughCarry(value)
	case cbRR:
		result = c.cbRotateRightThroughCarry(value)
	case cbSLA:
		result = c.cbShiftLeft(value)
	case cbSRA:
		result = c.cbShiftRightArithmetic(value)
	case cbSWAP:
		result = c.cbSwapNibbles(value)
	case cbSRL:
		result = c.cbShiftRightLogical(value)
	case cbRES:
		result = value &^ (1 << instr.Bit)
	case cbSET:
		result = value | 1<<instr.Bit
	}

	if instr.Target.Kind == operandMem {
		c.bus.TickWrite(c.pairValue(instr.Target.Reg), result)
	} else {
		*c.reg8(instr.Target.Reg) = result
	}
}
