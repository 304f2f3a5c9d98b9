package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"fixedreply/internal/core/responder"
	"fixedreply/internal/probe"
	"fixedreply/internal/shared/config"
	"fixedreply/internal/shared/logger"
	"fixedreply/internal/shared/types"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:19000", "Responder address")
	payload := flag.String("payload", "hello", "Payload to send")
	socks5 := flag.String("socks5", "", "Optional SOCKS5 proxy address")
	expectHex := flag.String("expect", "", "Expected reply as hex (default: built-in reply)")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall timeout")
	level := flag.String("log", "info", "Log level")
	flag.Parse()

	if err := logger.Init(types.LogConf{Level: *level}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	expect, err := config.ParseReplyHex(*expectHex)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid -expect")
	}
	if expect == nil {
		expect = responder.DefaultReply()
	}

	res, err := probe.Probe(context.Background(), probe.Options{
		Addr:    *addr,
		Payload: []byte(*payload),
		Expect:  expect,
		Socks5:  *socks5,
		Timeout: *timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Probe failed")
	}

	fmt.Println(hex.EncodeToString(res.Reply))
	if !res.Match {
		logger.Error().Int("reply_len", len(res.Reply)).Msg("Reply does not match the expected bytes")
		os.Exit(1)
	}
	logger.Info().Int("reply_len", len(res.Reply)).Msgf("Reply matched in %s", res.Latency)
}
