package gsession

import (
	"encoding/binary"
	"fmt"
)

// Packet ids the core itself understands. Everything else is opaque
// application-level traffic the core merely routes.
const (
	PacketIDPing        uint16 = 1
	PacketIDPingResponse uint16 = 2
	PacketIDClaim        uint16 = 3
	PacketIDRoomInfo     uint16 = 4
	PacketIDTermination  uint16 = 5
)

// headerSize is the fixed 2-byte packet-id header every application
// packet begins with.
const headerSize = 2

// ErrShortPacket is returned when a datagram or frame is too small to
// contain even the fixed header.
var ErrShortPacket = fmt.Errorf("gsession: packet shorter than header")

// readPacketID decodes the fixed header and returns the id plus the
// remaining payload.
func readPacketID(data []byte) (id uint16, payload []byte, err error) {
	if len(data) < headerSize {
		return 0, nil, ErrShortPacket
	}
	return binary.BigEndian.Uint16(data[:headerSize]), data[headerSize:], nil
}

// PingPacket is the liveness probe request: carries a correlation id the
// response must echo back.
type PingPacket struct {
	CorrelationID uint32
}

func decodePingPacket(payload []byte) (PingPacket, error) {
	if len(payload) < 4 {
		return PingPacket{}, ErrShortPacket
	}
	return PingPacket{CorrelationID: binary.BigEndian.Uint32(payload)}, nil
}

// PingResponsePacket echoes the probe's correlation id alongside the
// current player count.
type PingResponsePacket struct {
	CorrelationID uint32
	PlayerCount   uint32
}

func (p PingResponsePacket) encode() []byte {
	buf := make([]byte, headerSize+8)
	binary.BigEndian.PutUint16(buf[:headerSize], PacketIDPingResponse)
	binary.BigEndian.PutUint32(buf[headerSize:headerSize+4], p.CorrelationID)
	binary.BigEndian.PutUint32(buf[headerSize+4:], p.PlayerCount)
	return buf
}

// ClaimPacket carries the 32-bit claim secret proving the datagram peer
// owns the matching unclaimed stream session.
type ClaimPacket struct {
	Secret uint32
}

func decodeClaimPacket(payload []byte) (ClaimPacket, error) {
	if len(payload) < 4 {
		return ClaimPacket{}, ErrShortPacket
	}
	return ClaimPacket{Secret: binary.BigEndian.Uint32(payload)}, nil
}

// RoomInfo is the opaque-to-the-application-layer room snapshot the
// broadcast engine serializes into a RoomInfoPacket.
type RoomInfo struct {
	RoomID      uint32
	OwnerID     int32
	PlayerCount int32
	Name        string
}

// encodeRoomInfoPacket serializes a RoomInfo into a RoomInfoPacket frame.
func encodeRoomInfoPacket(info RoomInfo) []byte {
	name := []byte(info.Name)
	size := headerSize + 4 + 4 + 4 + 2 + len(name)
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[:headerSize], PacketIDRoomInfo)
	off := headerSize
	binary.BigEndian.PutUint32(buf[off:], info.RoomID)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(info.OwnerID))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(info.PlayerCount))
	off += 4
	binary.BigEndian.PutUint16(buf[off:], uint16(len(name)))
	off += 2
	copy(buf[off:], name)
	return buf
}

// encodeTerminationPacket serializes a termination notice reason string
// into the frame sent to the client just before the reader exits.
func encodeTerminationPacket(reason string) []byte {
	r := []byte(reason)
	buf := make([]byte, headerSize+2+len(r))
	binary.BigEndian.PutUint16(buf[:headerSize], PacketIDTermination)
	binary.BigEndian.PutUint16(buf[headerSize:], uint16(len(r)))
	copy(buf[headerSize+2:], r)
	return buf
}
