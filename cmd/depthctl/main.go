package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	depthnet "depthbook/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the depthbookd query server")
	action := flag.String("action", "depth", "Action to perform: ['depth', 'watch', 'heartbeat']")
	symbol := flag.String("symbol", "", "Symbol to query (compulsory for depth and watch)")
	depth := flag.Uint("depth", 10, "Levels per side; 0 for the whole book")
	interval := flag.Duration("interval", time.Second, "Polling interval for watch")
	flag.Parse()

	if *depth > 0xffff {
		log.Fatal().Uint("depth", *depth).Msg("depth must fit in 16 bits")
	}

	conn, err := net.DialTimeout("tcp", *serverAddr, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()

	query := depthnet.Request{Type: depthnet.QueryDepth, Depth: uint16(*depth), Symbol: strings.ToUpper(*symbol)}

	switch strings.ToLower(*action) {
	case "heartbeat":
		report, err := roundTrip(conn, depthnet.Request{Type: depthnet.Heartbeat})
		if err != nil {
			log.Fatal().Err(err).Msg("heartbeat failed")
		}
		fmt.Printf("server %s: %s\n", *serverAddr, report.Status)

	case "depth":
		requireSymbol(*symbol)
		report, err := roundTrip(conn, query)
		if err != nil {
			log.Fatal().Err(err).Msg("depth query failed")
		}
		printReport(os.Stdout, query.Symbol, report)

	case "watch":
		requireSymbol(*symbol)
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for ; ; <-ticker.C {
			report, err := roundTrip(conn, query)
			if err != nil {
				log.Fatal().Err(err).Msg("depth query failed")
			}
			fmt.Print("\033[H\033[2J")
			printReport(os.Stdout, query.Symbol, report)
		}

	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}
}

func requireSymbol(symbol string) {
	if symbol == "" {
		fmt.Println("Error: -symbol is compulsory.")
		flag.Usage()
		os.Exit(1)
	}
}

func roundTrip(conn net.Conn, req depthnet.Request) (depthnet.Report, error) {
	buf, err := req.Serialize()
	if err != nil {
		return depthnet.Report{}, err
	}
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return depthnet.Report{}, err
	}
	if _, err := conn.Write(buf); err != nil {
		return depthnet.Report{}, err
	}
	return depthnet.ReadReport(conn)
}

// printReport renders bids and asks side by side, best prices on the first row.
func printReport(out io.Writer, symbol string, report depthnet.Report) {
	if report.MessageType == depthnet.ErrorReport {
		fmt.Fprintf(out, "[SERVER ERROR] %s: %s\n", report.Status, report.Err)
		return
	}

	fmt.Fprintf(out, "%s  update id %d\n\n", symbol, report.UpdateID)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "BID QTY\tBID\tASK\tASK QTY\t")
	for i := range max(len(report.Bids), len(report.Asks)) {
		var bid, ask depthnet.Row
		if i < len(report.Bids) {
			bid = report.Bids[i]
		}
		if i < len(report.Asks) {
			ask = report.Asks[i]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", bid.Quantity, bid.Price, ask.Price, ask.Quantity)
	}
	_ = w.Flush()
}
