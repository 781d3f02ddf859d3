package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"
)

//export shopql_open_memory
func shopql_open_memory() C.int {
	id, err := openConfig("")
	if err != nil {
		return -1
	}
	return C.int(id)
}

// shopql_open opens the store named by a ShopQL config file.
//
//export shopql_open
func shopql_open(configPath *C.char) C.int {
	id, err := openConfig(C.GoString(configPath))
	if err != nil {
		return -1
	}
	return C.int(id)
}

//export shopql_open_backup
func shopql_open_backup(location *C.char) C.int {
	id, err := openBackup(C.GoString(location))
	if err != nil {
		return -1
	}
	return C.int(id)
}

//export shopql_close
func shopql_close(handle C.int) {
	handles.remove(int(handle))
}

//export shopql_execute
func shopql_execute(handle C.int, query *C.char) *C.char {
	return C.CString(encode(execute(int(handle), C.GoString(query))))
}

//export shopql_free
func shopql_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func main() {}
