// Package memd defines the wire format of the memcached-derived binary
// protocol: opcodes, status codes, the 24-byte header, request/response
// variants, mutation tokens, sub-document commands, and reference-counted
// payload buffers.
package memd

import "fmt"

// Magic identifies whether a packet is a request or a response.
type Magic uint8

const (
	MagicReq Magic = 0x80
	MagicRes Magic = 0x81
)

// Opcode identifies the operation a request performs or a response answers.
type Opcode uint8

const (
	OpGet               Opcode = 0x00
	OpUpsert            Opcode = 0x01
	OpInsert            Opcode = 0x02
	OpReplace           Opcode = 0x03
	OpRemove            Opcode = 0x04
	OpCounterIncrement  Opcode = 0x05
	OpCounterDecrement  Opcode = 0x06
	OpNoop              Opcode = 0x0a
	OpAppend            Opcode = 0x0e
	OpPrepend           Opcode = 0x0f
	OpStat              Opcode = 0x10
	OpTouch             Opcode = 0x1c
	OpGAT               Opcode = 0x1d
	OpHello             Opcode = 0x1f
	OpGetAllMutationTok Opcode = 0x48
	OpGetReplica        Opcode = 0x83
	OpSelectBucket      Opcode = 0x89
	OpObserveSeqNo      Opcode = 0x91
	OpObserve           Opcode = 0x92
	OpGetAndLock        Opcode = 0x94
	OpUnlock            Opcode = 0x95
	OpGetBucketConfig   Opcode = 0xb5
	OpGetRandom         Opcode = 0xb6
	OpSubdocGet         Opcode = 0xc5
	OpSubdocExists      Opcode = 0xc6
	OpSubdocDictAdd     Opcode = 0xc7
	OpSubdocDictSet     Opcode = 0xc8
	OpSubdocDelete      Opcode = 0xc9
	OpSubdocReplace     Opcode = 0xca
	OpSubdocArrayPushLast  Opcode = 0xcb
	OpSubdocArrayPushFirst Opcode = 0xcc
	OpSubdocArrayInsert    Opcode = 0xcd
	OpSubdocArrayAddUnique Opcode = 0xce
	OpSubdocCounter        Opcode = 0xcf
	OpSubdocMultiLookup    Opcode = 0xd0
	OpSubdocMultiMutation  Opcode = 0xd1
)

// String renders op using the mnemonic from this file's constant table,
// for event/log display; an opcode this package doesn't define prints
// as its raw hex value.
func (op Opcode) String() string {
	switch op {
	case OpGet:
		return "GET"
	case OpUpsert:
		return "UPSERT"
	case OpInsert:
		return "INSERT"
	case OpReplace:
		return "REPLACE"
	case OpRemove:
		return "REMOVE"
	case OpCounterIncrement:
		return "COUNTER_INCR"
	case OpCounterDecrement:
		return "COUNTER_DECR"
	case OpNoop:
		return "NOOP"
	case OpAppend:
		return "APPEND"
	case OpPrepend:
		return "PREPEND"
	case OpStat:
		return "STAT"
	case OpTouch:
		return "TOUCH"
	case OpGAT:
		return "GAT"
	case OpHello:
		return "HELLO"
	case OpGetAllMutationTok:
		return "GET_ALL_MUTATION_TOKENS"
	case OpGetReplica:
		return "GET_REPLICA"
	case OpSelectBucket:
		return "SELECT_BUCKET"
	case OpObserveSeqNo:
		return "OBSERVE_SEQNO"
	case OpObserve:
		return "OBSERVE"
	case OpGetAndLock:
		return "GET_AND_LOCK"
	case OpUnlock:
		return "UNLOCK"
	case OpGetBucketConfig:
		return "GET_BUCKET_CONFIG"
	case OpGetRandom:
		return "GET_RANDOM"
	case OpSubdocGet:
		return "SUBDOC_GET"
	case OpSubdocExists:
		return "SUBDOC_EXISTS"
	case OpSubdocDictAdd:
		return "SUBDOC_DICT_ADD"
	case OpSubdocDictSet:
		return "SUBDOC_DICT_SET"
	case OpSubdocDelete:
		return "SUBDOC_DELETE"
	case OpSubdocReplace:
		return "SUBDOC_REPLACE"
	case OpSubdocArrayPushLast:
		return "SUBDOC_ARRAY_PUSH_LAST"
	case OpSubdocArrayPushFirst:
		return "SUBDOC_ARRAY_PUSH_FIRST"
	case OpSubdocArrayInsert:
		return "SUBDOC_ARRAY_INSERT"
	case OpSubdocArrayAddUnique:
		return "SUBDOC_ARRAY_ADD_UNIQUE"
	case OpSubdocCounter:
		return "SUBDOC_COUNTER"
	case OpSubdocMultiLookup:
		return "SUBDOC_MULTI_LOOKUP"
	case OpSubdocMultiMutation:
		return "SUBDOC_MULTI_MUTATION"
	default:
		return fmt.Sprintf("OPCODE(0x%02x)", uint8(op))
	}
}

// IsSubdocSingle reports whether op is a single-path sub-document command.
func IsSubdocSingle(op Opcode) bool {
	switch op {
	case OpSubdocGet, OpSubdocExists, OpSubdocDictAdd, OpSubdocDictSet,
		OpSubdocDelete, OpSubdocReplace, OpSubdocArrayPushLast,
		OpSubdocArrayPushFirst, OpSubdocArrayInsert, OpSubdocArrayAddUnique,
		OpSubdocCounter:
		return true
	default:
		return false
	}
}

// IsMutationOpcode reports whether op is expected to carry a mutation token
// in its response extras when MUTATION_SEQNO has been negotiated.
func IsMutationOpcode(op Opcode) bool {
	switch op {
	case OpUpsert, OpInsert, OpReplace, OpRemove, OpCounterIncrement,
		OpCounterDecrement, OpAppend, OpPrepend, OpSubdocDictAdd,
		OpSubdocDictSet, OpSubdocDelete, OpSubdocReplace,
		OpSubdocArrayPushLast, OpSubdocArrayPushFirst, OpSubdocArrayInsert,
		OpSubdocArrayAddUnique, OpSubdocCounter, OpSubdocMultiMutation:
		return true
	default:
		return false
	}
}
