// Package benchmarks runs reference ARM routines on the emulator, checks
// them against native Go implementations and reports instruction and
// cache statistics.
package benchmarks

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/sarchlab/armemu/asm"
	"github.com/sarchlab/armemu/emu"
)

// Routine names a reference routine. Name is also the label of its entry
// point in Source.
type Routine struct {
	Name        string
	Description string
}

// The reference routines.
var (
	Quadratic = Routine{Name: "quadratic", Description: "a*x*x + b*x + c"}
	SumArray  = Routine{Name: "sum_array", Description: "sum of an int array"}
	FindMax   = Routine{Name: "find_max", Description: "largest element of an int array"}
	FibIter   = Routine{Name: "fib_iter", Description: "nth Fibonacci number, iterative"}
	FibRec    = Routine{Name: "fib_rec", Description: "nth Fibonacci number, recursive"}
	StrLen    = Routine{Name: "strlen", Description: "length of a NUL-terminated string"}
)

// Routines returns every reference routine in suite order.
func Routines() []Routine {
	return []Routine{Quadratic, SumArray, FindMax, FibIter, FibRec, StrLen}
}

// Source is the assembly of all reference routines. Arguments arrive in
// r0-r3 and the result is returned in r0.
const Source = `
@ int quadratic(int x, int a, int b, int c)
quadratic:
	mul   r12, r0, r0        @ x*x
	mul   r12, r1, r12       @ a*x*x
	mul   r1, r2, r0         @ b*x
	add   r0, r12, r1
	add   r0, r0, r3
	bx    lr

@ int sum_array(int *array, int n)
sum_array:
	mov   r2, #0
sum_loop:
	cmp   r1, #0
	beq   sum_done
	ldr   r3, [r0]
	add   r2, r2, r3
	add   r0, r0, #4
	sub   r1, r1, #1
	b     sum_loop
sum_done:
	mov   r0, r2
	bx    lr

@ int find_max(int *array, int n)
find_max:
	mov   r2, #0
	cmp   r1, #0
	beq   max_done
	ldr   r2, [r0]
	mov   r3, #1
max_loop:
	cmp   r3, r1
	beq   max_done
	add   r0, r0, #4
	add   r3, r3, #1
	ldr   r12, [r0]
	cmp   r12, r2
	blt   max_loop
	beq   max_loop
	mov   r2, r12
	b     max_loop
max_done:
	mov   r0, r2
	bx    lr

@ int fib_iter(int n)
fib_iter:
	mov   r1, #0
	mov   r2, #1
fib_iter_loop:
	cmp   r0, #0
	beq   fib_iter_done
	add   r3, r1, r2
	mov   r1, r2
	mov   r2, r3
	sub   r0, r0, #1
	b     fib_iter_loop
fib_iter_done:
	mov   r0, r1
	bx    lr

@ int fib_rec(int n)
fib_rec:
	cmp   r0, #2
	blt   fib_rec_base
	sub   sp, sp, #12
	str   lr, [sp, #8]
	str   r4, [sp, #4]
	str   r5, [sp]
	mov   r4, r0
	sub   r0, r4, #1
	bl    fib_rec
	mov   r5, r0
	sub   r0, r4, #2
	bl    fib_rec
	add   r0, r5, r0
	ldr   r5, [sp]
	ldr   r4, [sp, #4]
	ldr   lr, [sp, #8]
	add   sp, sp, #12
fib_rec_base:
	bx    lr

@ int strlen(char *s)
strlen:
	mov   r1, r0
	mov   r0, #0
strlen_loop:
	ldrb  r2, [r1, r0]
	cmp   r2, #0
	beq   strlen_done
	add   r0, r0, #1
	b     strlen_loop
strlen_done:
	bx    lr
`

// Program returns the assembled reference routines, placed at
// emu.CodeBase.
var Program = sync.OnceValue(func() *asm.Program {
	return asm.MustAssemble(emu.CodeBase, Source)
})

// Native implementations.

// NativeQuadratic computes a*x*x + b*x + c with 32-bit wraparound.
func NativeQuadratic(x, a, b, c int32) int32 {
	return a*x*x + b*x + c
}

// NativeSumArray sums values with 32-bit wraparound.
func NativeSumArray(values []int32) int32 {
	var sum int32
	for _, v := range values {
		sum += v
	}
	return sum
}

// NativeFindMax returns the largest value, or 0 for an empty slice.
func NativeFindMax(values []int32) int32 {
	if len(values) == 0 {
		return 0
	}
	largest := values[0]
	for _, v := range values[1:] {
		if v > largest {
			largest = v
		}
	}
	return largest
}

// NativeFibIter returns the nth Fibonacci number.
func NativeFibIter(n int32) int32 {
	var prev, cur int32 = 0, 1
	for ; n > 0; n-- {
		prev, cur = cur, prev+cur
	}
	return prev
}

// NativeFibRec returns the nth Fibonacci number by naive recursion.
func NativeFibRec(n int32) int32 {
	if n < 2 {
		return n
	}
	return NativeFibRec(n-1) + NativeFibRec(n-2)
}

// NativeStrLen returns the number of bytes before the first NUL.
func NativeStrLen(s string) int32 {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return int32(i)
	}
	return int32(len(s))
}

// Case is one call of a routine with its expected result.
type Case struct {
	Routine Routine
	Label   string

	// Args are passed in r0-r3. When Data is set, Args[0] is DataBase.
	Args []uint32

	// Data is placed at emu.DataBase for the duration of the call.
	Data []byte

	Expected int32
}

// Name returns the routine and label, e.g. "strlen(\"mouse\")".
func (c Case) Name() string {
	return c.Routine.Name + c.Label
}

// QuadraticCase builds a quadratic call.
func QuadraticCase(x, a, b, c int32) Case {
	return Case{
		Routine:  Quadratic,
		Label:    fmt.Sprintf("(%d, %d, %d, %d)", x, a, b, c),
		Args:     []uint32{uint32(x), uint32(a), uint32(b), uint32(c)},
		Expected: NativeQuadratic(x, a, b, c),
	}
}

func arrayCase(r Routine, native func([]int32) int32, label string, values []int32) Case {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
	}
	if label == "" {
		label = formatArray(values)
	}
	return Case{
		Routine:  r,
		Label:    fmt.Sprintf("(%s, %d)", label, len(values)),
		Args:     []uint32{emu.DataBase, uint32(len(values))},
		Data:     data,
		Expected: native(values),
	}
}

// SumArrayCase builds a sum_array call. An empty label prints the values.
func SumArrayCase(label string, values []int32) Case {
	return arrayCase(SumArray, NativeSumArray, label, values)
}

// FindMaxCase builds a find_max call. An empty label prints the values.
func FindMaxCase(label string, values []int32) Case {
	return arrayCase(FindMax, NativeFindMax, label, values)
}

// FibIterCase builds a fib_iter call.
func FibIterCase(n int32) Case {
	return Case{
		Routine:  FibIter,
		Label:    fmt.Sprintf("(%d)", n),
		Args:     []uint32{uint32(n)},
		Expected: NativeFibIter(n),
	}
}

// FibRecCase builds a fib_rec call.
func FibRecCase(n int32) Case {
	return Case{
		Routine:  FibRec,
		Label:    fmt.Sprintf("(%d)", n),
		Args:     []uint32{uint32(n)},
		Expected: NativeFibRec(n),
	}
}

// StrLenCase builds a strlen call on s.
func StrLenCase(s string) Case {
	return Case{
		Routine:  StrLen,
		Label:    fmt.Sprintf("(%q)", s),
		Args:     []uint32{emu.DataBase},
		Data:     append([]byte(s), 0),
		Expected: NativeStrLen(s),
	}
}

func formatArray(values []int32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func repeat(v int32, n int) []int32 {
	values := make([]int32, n)
	for i := range values {
		values[i] = v
	}
	return values
}

// stepArray is -1 for indices 0-250, 0 up to 500, 1 up to 750, 2 up to 998
// and 3 at 999.
func stepArray() []int32 {
	values := make([]int32, 1000)
	for i := range values {
		switch {
		case i <= 250:
			values[i] = -1
		case i <= 500:
			values[i] = 0
		case i <= 750:
			values[i] = 1
		case i <= 998:
			values[i] = 2
		default:
			values[i] = 3
		}
	}
	return values
}

// Suite returns the full reference suite in routine order.
func Suite() []Case {
	cases := []Case{
		QuadraticCase(1, 2, 3, 4),
		QuadraticCase(0, 1, 2, 3),
		QuadraticCase(-2, 5, 3, 10),
		QuadraticCase(12, 2, 9, 3),

		SumArrayCase("", []int32{1, 2, 3, 4, 5}),
		SumArrayCase("", []int32{0, 0, 0, 0, 1000}),
		SumArrayCase("", []int32{10, 12, 14, 16, 18}),
		SumArrayCase("[1, 1, 1, 1, ...]", repeat(1, 1000)),

		FindMaxCase("", []int32{1, 2, 3, 4, 5}),
		FindMaxCase("", []int32{1, 2, -3, 4, -5}),
		FindMaxCase("", []int32{0, 0, 0, 0, 1000}),
		FindMaxCase("[-1, ..., 0, ..., 1, ..., 2, ..., 3]", stepArray()),
	}

	for n := int32(0); n < 20; n++ {
		cases = append(cases, FibIterCase(n))
	}
	for n := int32(0); n < 20; n++ {
		cases = append(cases, FibRecCase(n))
	}

	for _, s := range []string{"0123456789", "mouse", "", "madeline"} {
		cases = append(cases, StrLenCase(s))
	}

	return cases
}

// Filter returns the cases whose routine name is in names. No names
// keeps every case.
func Filter(cases []Case, names ...string) []Case {
	if len(names) == 0 {
		return cases
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	var out []Case
	for _, c := range cases {
		if keep[c.Routine.Name] {
			out = append(out, c)
		}
	}
	return out
}
