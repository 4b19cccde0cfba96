package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// The synthesis provider emits ogg-encapsulated opus; the gateway wants raw
// opus packets. This reader walks the ogg page framing and yields packets,
// skipping the OpusHead/OpusTags header packets.

var oggMagic = []byte("OggS")

// opusPackets extracts the audio packets from an ogg-opus stream.
func opusPackets(r io.Reader) ([][]byte, error) {
	var packets [][]byte
	var pending []byte // packet continued across pages

	header := make([]byte, 27)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read page header: %w", err)
		}
		if !bytes.Equal(header[:4], oggMagic) {
			return nil, fmt.Errorf("bad ogg capture pattern %q", header[:4])
		}

		nSegs := int(header[26])
		table := make([]byte, nSegs)
		if _, err := io.ReadFull(r, table); err != nil {
			return nil, fmt.Errorf("read segment table: %w", err)
		}

		for _, lacing := range table {
			seg := make([]byte, int(lacing))
			if _, err := io.ReadFull(r, seg); err != nil {
				return nil, fmt.Errorf("read segment: %w", err)
			}
			pending = append(pending, seg...)
			// A lacing value below 255 terminates the packet.
			if lacing < 255 {
				packets = append(packets, pending)
				pending = nil
			}
		}
	}
	if len(pending) > 0 {
		packets = append(packets, pending)
	}

	// Drop the id and comment header packets.
	for len(packets) > 0 && isHeaderPacket(packets[0]) {
		packets = packets[1:]
	}
	return packets, nil
}

func isHeaderPacket(p []byte) bool {
	return bytes.HasPrefix(p, []byte("OpusHead")) || bytes.HasPrefix(p, []byte("OpusTags"))
}

// writeOggPage is a test helper counterpart kept here so the framing logic
// lives in one file: it assembles a single ogg page from whole packets.
func writeOggPage(w io.Writer, serial uint32, seq uint32, packets [][]byte) error {
	var table []byte
	var body []byte
	for _, p := range packets {
		n := len(p)
		for n >= 255 {
			table = append(table, 255)
			n -= 255
		}
		table = append(table, byte(n))
		body = append(body, p...)
	}
	if len(table) > 255 {
		return fmt.Errorf("too many segments for one page")
	}

	header := make([]byte, 27)
	copy(header, oggMagic)
	binary.LittleEndian.PutUint32(header[14:], serial)
	binary.LittleEndian.PutUint32(header[18:], seq)
	header[26] = byte(len(table))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(table); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
