// Package vm implements the Rill virtual machine.
//
// This package contains:
//   - the opcode set, its metadata table and a disassembler
//   - the tagged Value model and shared mutable lists
//   - the stack machine with inline call frames
//   - the native function table
package vm
