// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package smc_test

import (
	"errors"
	"testing"

	"github.com/Thermoquad/smcstat/pkg/smc"
	"github.com/Thermoquad/smcstat/pkg/smc/smctest"
)

// ============================================================
// Generic Iterator Tests
// ============================================================

// countingIter returns an iterator over 0..n-1 and the read counter
func countingIter(t *testing.T, n int) (*smc.Iter[int], *int) {
	t.Helper()
	reads := 0
	it, err := smc.NewIter(
		func() (int, error) { return n, nil },
		func(i int) (int, error) {
			reads++
			return i, nil
		},
	)
	if err != nil {
		t.Fatalf("NewIter failed: %v", err)
	}
	return it, &reads
}

func TestIter_Forward(t *testing.T) {
	it, reads := countingIter(t, 5)
	var got []int
	for v, err := range it.All() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 5 || *reads != 5 {
		t.Fatalf("expected 5 items and reads, got %v (%d reads)", got, *reads)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("item %d: got %d", i, v)
		}
	}
	if _, ok, _ := it.Next(); ok {
		t.Error("iterator not exhausted")
	}
}

func TestIter_Backward(t *testing.T) {
	it, _ := countingIter(t, 4)
	var got []int
	for v := range it.Backward() {
		got = append(got, v)
	}
	expected := []int{3, 2, 1, 0}
	if len(got) != len(expected) {
		t.Fatalf("got %v", got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("got %v, want %v", got, expected)
			break
		}
	}
}

func TestIter_NthIsOneRead(t *testing.T) {
	for k := 0; k < 6; k++ {
		it, reads := countingIter(t, 6)
		v, ok, err := it.Nth(k)
		if !ok || err != nil || v != k {
			t.Errorf("Nth(%d) = %d, %v, %v", k, v, ok, err)
		}
		if *reads != 1 {
			t.Errorf("Nth(%d) issued %d reads", k, *reads)
		}

		// Matches k+1 sequential Next calls
		seq, _ := countingIter(t, 6)
		var last int
		for i := 0; i <= k; i++ {
			last, _, _ = seq.Next()
		}
		if last != v {
			t.Errorf("Nth(%d) = %d, sequential = %d", k, v, last)
		}
	}
}

func TestIter_NthPastEnd(t *testing.T) {
	it, reads := countingIter(t, 3)
	if _, ok, _ := it.Nth(3); ok {
		t.Error("Nth(3) on 3 elements returned an item")
	}
	if _, ok, _ := it.Nth(100); ok {
		t.Error("Nth(100) returned an item")
	}
	if *reads != 0 {
		t.Errorf("exhausted seek issued %d reads", *reads)
	}
	if it.Len() != 0 {
		t.Errorf("expected empty window, got %d", it.Len())
	}
}

func TestIter_NthBack(t *testing.T) {
	it, reads := countingIter(t, 10)
	v, ok, _ := it.NthBack(2)
	if !ok || v != 7 {
		t.Errorf("NthBack(2) = %d, %v", v, ok)
	}
	if *reads != 1 {
		t.Errorf("NthBack issued %d reads", *reads)
	}
	if it.Len() != 7 {
		t.Errorf("expected 7 left, got %d", it.Len())
	}
}

func TestIter_CursorsConverge(t *testing.T) {
	it, _ := countingIter(t, 5)
	a, _, _ := it.Next()
	b, _, _ := it.NextBack()
	c, _, _ := it.Next()
	d, _, _ := it.NextBack()
	e, _, _ := it.Next()
	if a != 0 || b != 4 || c != 1 || d != 3 || e != 2 {
		t.Errorf("got %d %d %d %d %d", a, b, c, d, e)
	}
	if _, ok, _ := it.NextBack(); ok {
		t.Error("backward cursor passed forward cursor")
	}
	if _, ok, _ := it.Next(); ok {
		t.Error("forward cursor passed backward cursor")
	}
}

func TestIter_LenCountLast(t *testing.T) {
	it, reads := countingIter(t, 7)
	it.Next()
	if it.Len() != 6 {
		t.Errorf("Len = %d", it.Len())
	}
	if n := it.Count(); n != 6 {
		t.Errorf("Count = %d", n)
	}
	if *reads != 1 {
		t.Errorf("Count issued reads: %d", *reads)
	}

	it, reads = countingIter(t, 7)
	v, ok, _ := it.Last()
	if !ok || v != 6 || *reads != 1 {
		t.Errorf("Last = %d, %v (%d reads)", v, ok, *reads)
	}
	if it.Len() != 0 {
		t.Error("Last did not exhaust the iterator")
	}
}

func TestIter_ErrorsAreItems(t *testing.T) {
	boom := errors.New("boom")
	it, err := smc.NewIter(
		func() (int, error) { return 3, nil },
		func(i int) (int, error) {
			if i == 1 {
				return 0, boom
			}
			return i, nil
		},
	)
	if err != nil {
		t.Fatalf("NewIter failed: %v", err)
	}

	var errs, oks int
	for _, err := range it.All() {
		if errors.Is(err, boom) {
			errs++
		} else if err == nil {
			oks++
		}
	}
	if errs != 1 || oks != 2 {
		t.Errorf("expected 1 error and 2 items, got %d and %d", errs, oks)
	}
}

func TestIter_SizeError(t *testing.T) {
	boom := errors.New("boom")
	_, err := smc.NewIter(
		func() (int, error) { return 0, boom },
		func(i int) (int, error) { return i, nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("expected size error, got %v", err)
	}
}

// ============================================================
// Connection Iterator Tests
// ============================================================

func TestConn_Fans(t *testing.T) {
	ctrl := newLaptop()
	conn := openConn(t, ctrl)

	fans, err := conn.Fans()
	if err != nil {
		t.Fatalf("Fans failed: %v", err)
	}
	if fans.Len() != 2 {
		t.Fatalf("expected 2 fans, got %d", fans.Len())
	}

	ctrl.ResetCalls()
	f, ok, err := fans.Nth(1)
	if !ok || err != nil || f.Actual != 2400 {
		t.Errorf("Nth(1): %+v, %v, %v", f, ok, err)
	}
	// One fan snapshot is six registers, two phases each
	if n := len(ctrl.Calls()); n != 12 {
		t.Errorf("expected 12 calls for one fan, got %d", n)
	}
	for _, c := range ctrl.Calls() {
		if c.Key.String()[1] != '1' {
			t.Errorf("seek touched fan key %s", c.Key)
		}
	}
}

func TestConn_CPUCoreTemps(t *testing.T) {
	conn := openConn(t, newLaptop())

	cores, err := conn.CPUCoreTemps(4)
	if err != nil {
		t.Fatalf("CPUCoreTemps failed: %v", err)
	}
	var got []smc.Celsius
	for c, err := range cores.All() {
		if err != nil {
			t.Fatalf("core read failed: %v", err)
		}
		got = append(got, c)
	}
	if len(got) != 4 || got[0] != 50 || got[3] != 53 {
		t.Errorf("unexpected core temps %v", got)
	}

	cores, _ = conn.CPUCoreTemps(10)
	_, _, err = cores.NthBack(0)
	if !errors.Is(err, smc.ErrIndexOutOfRange) {
		t.Errorf("core 9: expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestConn_KeysAndData(t *testing.T) {
	ctrl := smctest.New().
		SetFloat("TC0P", 48).
		SetUint("FNum", 1, 1).
		SetEntry("BIG!", smctest.Entry{Type: smc.TypeHex, Data: []byte{1}, Size: 40})
	conn := openConn(t, ctrl)

	keys, err := conn.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if keys.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", keys.Len())
	}
	info, ok, err := keys.NextBack()
	if !ok || err != nil || info.Key.String() != "BIG!" || info.Size != 40 {
		t.Errorf("last key: %v, %v, %v", info, ok, err)
	}

	data, err := conn.Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	var readings []smc.KeyReading
	for r, err := range data.All() {
		if err != nil {
			t.Fatalf("index read failed: %v", err)
		}
		readings = append(readings, r)
	}
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	if !readings[0].Present || !readings[0].Value.Equal(smc.FloatValue(48)) {
		t.Errorf("TC0P reading: %+v", readings[0])
	}
	if !errors.Is(readings[2].Err, smc.ErrOversizedPayload) {
		t.Errorf("BIG! reading: expected oversized error, got %v", readings[2].Err)
	}
}

func TestConn_Batteries(t *testing.T) {
	conn := openConn(t, newLaptop())

	batteries, err := conn.Batteries()
	if err != nil {
		t.Fatalf("Batteries failed: %v", err)
	}
	b, ok, err := batteries.Next()
	if !ok || err != nil || b.Cycles != 321 {
		t.Errorf("battery 0: %+v, %v, %v", b, ok, err)
	}
	if _, ok, _ := batteries.Next(); ok {
		t.Error("expected a single battery")
	}
}
