// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build darwin && cgo

package smc

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation
#include <stdlib.h>
#include <string.h>
#include <IOKit/IOKitLib.h>
#include <mach/mach.h>

static kern_return_t smc_open(io_connect_t *conn, int *found) {
	CFMutableDictionaryRef matching = IOServiceMatching("AppleSMC");
	io_service_t device = IOServiceGetMatchingService(0, matching);
	*found = device != 0;
	if (device == 0) {
		return 0;
	}
	kern_return_t kr = IOServiceOpen(device, mach_task_self(), 0, conn);
	IOObjectRelease(device);
	return kr;
}

static kern_return_t smc_call(io_connect_t conn, uint32_t selector,
		const void *in, size_t inSize, void *out, size_t *outSize) {
	return IOConnectCallStructMethod(conn, selector, in, inSize, out, outSize);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// kernelIndexSMC is the user client method that handles KeyData requests
const kernelIndexSMC = 2

// IOKitCaller calls the AppleSMC user client directly
type IOKitCaller struct {
	conn C.io_connect_t
}

// OpenIOKit opens the AppleSMC service
func OpenIOKit() (Caller, error) {
	var (
		conn  C.io_connect_t
		found C.int
	)
	kr := C.smc_open(&conn, &found)
	if found == 0 {
		return nil, fmt.Errorf("%w: AppleSMC service not found", ErrResourceUnavailable)
	}
	if kr != 0 {
		return nil, fmt.Errorf("%w: IOServiceOpen failed: 0x%08X", ErrResourceUnavailable, uint32(kr))
	}
	return &IOKitCaller{conn: conn}, nil
}

// Call passes req to the kernel as raw memory
func (c *IOKitCaller) Call(req []byte, respSize int) ([]byte, Status, error) {
	if len(req) == 0 || respSize <= 0 {
		return nil, 0, fmt.Errorf("smc: empty request")
	}
	in := C.CBytes(req)
	defer C.free(in)
	out := C.malloc(C.size_t(respSize))
	defer C.free(out)
	C.memset(out, 0, C.size_t(respSize))

	outSize := C.size_t(respSize)
	kr := C.smc_call(c.conn, kernelIndexSMC, in, C.size_t(len(req)), out, &outSize)
	resp := C.GoBytes(unsafe.Pointer(out), C.int(outSize))
	return resp, Status(uint32(kr)), nil
}

// Close releases the user client connection
func (c *IOKitCaller) Close() error {
	if kr := C.IOServiceClose(c.conn); kr != 0 {
		return fmt.Errorf("smc: IOServiceClose failed: 0x%08X", uint32(kr))
	}
	return nil
}

// OpenLocal opens a Conn on the local controller
func OpenLocal(opts ...Option) (*Conn, error) {
	return Open(OpenIOKit, opts...)
}
