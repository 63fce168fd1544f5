package mixer

import "encoding/binary"

// EncodeWAV wraps PCM data already packed by PackSong/PackStream in a
// RIFF/WAVE header recording mode's width and channel count. The fmt chunk
// has no field for sign: the data bytes are copied as packed, signed or not.
// Generalized from the teacher's EncodeWAVFloat32LE, which always wrote a
// float32 (formatTag 3) data chunk; this spec's modes are integer PCM
// (formatTag 1), so unlike the teacher's version every mode this function
// handles sets the same fixed format tag; only bit depth and channel count vary.
func EncodeWAV(mode Mode, data []byte, sampleRate int) []byte {
	channels := mode.Channels()
	bytesPerSample := mode.BytesPerSample()
	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample
	bitsPerSample := bytesPerSample * 8

	dataSize := len(data)
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)

	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bitsPerSample))
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	copy(out[44:], data)
	return out
}

// WriteWAVHeader builds just the 44-byte RIFF/WAVE header describing
// dataSize bytes of mode-encoded PCM that the caller streams separately
// (e.g. via PackStream), so a large song can be written to disk without
// buffering the packed data twice.
func WriteWAVHeader(mode Mode, dataSize int, sampleRate int) []byte {
	channels := mode.Channels()
	bytesPerSample := mode.BytesPerSample()
	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample
	bitsPerSample := bytesPerSample * 8
	chunkSize := 36 + dataSize

	out := make([]byte, 44)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bitsPerSample))
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	return out
}
