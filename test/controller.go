package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"time"
)

// 模拟控制端：下发采样间隔，根据代理上报的画面亮度回送目标亮度
func main() {
	addr := flag.String("addr", "localhost:8888", "监听地址")
	interval := flag.Uint("interval", 300, "采样间隔(ms)")
	every := flag.Int("every", 5, "每收到多少个分数下发一次目标亮度")
	flag.Parse()

	ms, err := parseInterval(*interval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("监听失败: %v", err)
	}
	defer ln.Close()
	fmt.Printf("等待代理连接: %s\n", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("接受连接失败: %v", err)
		}
		serve(conn, ms, *every)
	}
}

func serve(conn net.Conn, interval uint16, every int) {
	defer conn.Close()
	fmt.Printf("代理已连接: %s\n", conn.RemoteAddr())

	if _, err := conn.Write(sampleRateFrame(interval)); err != nil {
		log.Printf("发送采样间隔失败: %v", err)
		return
	}

	score := make([]byte, 1)
	for i := 1; ; i++ {
		if _, err := io.ReadFull(conn, score); err != nil {
			log.Printf("连接断开: %v", err)
			return
		}
		fmt.Printf("[%s] 画面亮度: %d\n", time.Now().Format("15:04:05.000"), score[0])

		if every > 0 && i%every == 0 {
			target := targetFor(score[0])
			if _, err := conn.Write(brightnessFrame(target)); err != nil {
				log.Printf("发送目标亮度失败: %v", err)
				return
			}
			fmt.Printf("  -> 目标亮度: %d%%\n", target)
		}
	}
}

// parseInterval 采样间隔必须能放进两个字节
func parseInterval(v uint) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("采样间隔超出范围(0~%d): %d", math.MaxUint16, v)
	}
	return uint16(v), nil
}

// targetFor 画面越亮，屏幕亮度越低
func targetFor(score byte) uint8 {
	return uint8(100 - int(score)*70/255)
}

// sampleRateFrame 构造采样间隔帧
func sampleRateFrame(ms uint16) []byte {
	return []byte{'I', 3, 'S', byte(ms >> 8), byte(ms)}
}

// brightnessFrame 构造目标亮度帧
func brightnessFrame(percent uint8) []byte {
	return []byte{'I', 2, 'B', percent}
}
