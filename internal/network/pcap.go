package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/monitoring"
)

// pcapngMagic is the block type of a pcapng section header.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func openCapture(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if string(head) == string(pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("open pcapng: %w", err)
		}
		return ng, nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	return pr, nil
}

// ReadPCAPFile replays the UDP payloads in a pcap or pcapng capture through
// handler. Only datagrams addressed to udpPort are used; 0 accepts every
// port. Capture timestamps replace missing frame timestamps. Malformed
// payloads are counted and skipped.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler FrameHandler, stats Stats) error {
	if stats == nil {
		stats = noopStats{}
	}
	f, err := os.Open(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer f.Close()

	reader, err := openCapture(f)
	if err != nil {
		return fmt.Errorf("failed to read PCAP file %s: %w", pcapFile, err)
	}

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	packetCount, frameCount := 0, 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[pcap] stopping after %d packets", packetCount)
			return ctx.Err()
		case packet, ok := <-source.Packets():
			if !ok || packet == nil {
				monitoring.Logf("[pcap] replay complete: %d packets, %d frames in %v",
					packetCount, frameCount, time.Since(startTime))
				return nil
			}
			packetCount++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			if udpPort != 0 && int(udp.DstPort) != udpPort {
				continue
			}

			stats.AddPacket(len(udp.Payload))
			frame, err := l1segments.ParsePayload(udp.Payload)
			if err != nil {
				stats.AddMalformed()
				monitoring.Logf("[pcap] packet %d: %v", packetCount, err)
				continue
			}
			if frame.Timestamp.IsZero() {
				frame.Timestamp = packet.Metadata().Timestamp
			}
			stats.AddFrame()
			frameCount++
			if handler != nil {
				handler(frame)
			}
		}
	}
}
