package kernel

// Register indexes into TrapContext.X.
const (
	RegRA = 1
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA3 = 13
	RegA4 = 14
	RegA5 = 15
	RegA7 = 17
)

// TrapContext is the user register file saved on entry to the kernel.
type TrapContext struct {
	X       [32]uint64
	Sstatus uint64
	Sepc    uint64
}
