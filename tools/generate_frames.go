package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math"
	"os"

	"brightness-agent/internal/parser"
	"brightness-agent/pkg/protocol"
)

func main() {
	kind := flag.String("type", "sample", "帧类型 (sample=采样间隔, bright=目标亮度, raw=十六进制原始数据)")
	interval := flag.Uint("interval", 300, "采样间隔(ms)")
	percent := flag.Uint("percent", 50, "目标亮度(0~100)")
	raw := flag.String("hex", "", "原始十六进制，配合 -type raw 解析")
	flag.Parse()

	packet, err := buildPacket(*kind, *interval, *percent, *raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("数据包:\n")
	fmt.Printf("  十六进制: %s\n", hex.EncodeToString(packet))
	fmt.Printf("  字节数组: % x\n", packet)
	fmt.Printf("  C格式:    {%s}\n", toArray(packet))
	fmt.Printf("  Go格式:   []byte{%s}\n", toArray(packet))
	parseAndDisplay(packet)
}

// buildPacket 按帧类型构造数据包，超出协议范围的参数直接报错
func buildPacket(kind string, interval, percent uint, raw string) ([]byte, error) {
	switch kind {
	case "sample":
		if interval > math.MaxUint16 {
			return nil, fmt.Errorf("采样间隔超出范围(0~%d): %d", math.MaxUint16, interval)
		}
		return generateSampleRate(uint16(interval)), nil
	case "bright":
		if percent > protocol.MaxBrightnessPercent {
			return nil, fmt.Errorf("目标亮度超出范围(0~%d): %d", protocol.MaxBrightnessPercent, percent)
		}
		return generateBrightness(uint8(percent)), nil
	case "raw":
		data, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("十六进制格式错误: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("未知帧类型: %s", kind)
	}
}

// generateSampleRate 生成采样间隔帧：帧头 + 'S' + 大端序间隔
func generateSampleRate(ms uint16) []byte {
	return []byte{
		protocol.TagConfig, protocol.SampleRatePayloadSize,
		protocol.TagSampleRate, byte(ms >> 8), byte(ms),
	}
}

// generateBrightness 生成目标亮度帧
func generateBrightness(percent uint8) []byte {
	return []byte{
		protocol.TagConfig, protocol.BrightnessPayloadSize,
		protocol.TagBrightness, percent,
	}
}

// parseAndDisplay 用解码器解析并显示数据包内容
func parseAndDisplay(packet []byte) {
	fmt.Printf("  解析结果:\n")
	d := parser.NewDecoder()
	consumed := d.Drain(packet,
		func(msg protocol.Message) {
			fmt.Printf("    消息:     %s ✓\n", msg)
		},
		func(err error) {
			fmt.Printf("    错误:     %v ✗\n", err)
		},
	)
	if rest := len(packet) - consumed; rest > 0 {
		fmt.Printf("    未完成:   %d 字节, 等待 %d 字节 (%s)\n", rest, d.Need(), d.State())
	}
}

func toArray(data []byte) string {
	result := ""
	for i, b := range data {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("0x%02X", b)
	}
	return result
}
