package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/config"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/resilience"
)

// seedcatalog loads products into the store backend from a CSV file with the
// columns: nombre,precio,precio_quintal,unidades_por_quintal,stock,categoria.
// Empty precio_quintal/unidades_por_quintal mark a unit-only product.
func main() {
	var (
		file     = flag.String("file", "productos.csv", "CSV file with the catalog to load")
		username = flag.String("user", "", "backend username")
		password = flag.String("pass", "", "backend password")
		dryRun   = flag.Bool("dry-run", false, "parse and print without creating products")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	products, err := readCatalog(*file)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}
	log.Printf("parsed %d products from %s", len(products), *file)

	if *dryRun {
		for _, p := range products {
			fmt.Printf("%s  precio=%s stock=%d\n", p.Name, p.UnitPrice, p.Stock)
		}
		return
	}

	wrapped := resilience.HTTPClient{
		Client:      &http.Client{Timeout: cfg.BackendTimeout},
		Breaker:     resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor),
		BaseBackoff: cfg.RetryBaseBackoff,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	client := backend.New(cfg.BackendBaseURL, wrapped, wrapped)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sess, err := client.Login(ctx, *username, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	created := 0
	for _, p := range products {
		if _, err := client.CreateProduct(ctx, sess, p); err != nil {
			log.Printf("create %q: %v", p.Name, err)
			continue
		}
		created++
	}
	log.Printf("created %d/%d products", created, len(products))
}

func readCatalog(path string) ([]backend.NewProduct, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	products := make([]backend.NewProduct, 0, len(rows))
	for i, row := range rows {
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "nombre") {
			continue
		}
		p, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func parseRow(row []string) (backend.NewProduct, error) {
	unitPrice, err := money.ParseDecimal(strings.TrimSpace(row[1]))
	if err != nil {
		return backend.NewProduct{}, err
	}
	stock, err := strconv.Atoi(strings.TrimSpace(row[4]))
	if err != nil {
		return backend.NewProduct{}, fmt.Errorf("stock: %w", err)
	}
	p := backend.NewProduct{
		Name:      strings.TrimSpace(row[0]),
		UnitPrice: money.V(unitPrice),
		Stock:     stock,
		Category:  strings.TrimSpace(row[5]),
	}
	if bulk := strings.TrimSpace(row[2]); bulk != "" {
		amount, err := money.ParseDecimal(bulk)
		if err != nil {
			return backend.NewProduct{}, fmt.Errorf("precio_quintal: %w", err)
		}
		v := money.V(amount)
		p.BulkPrice = &v
	}
	if units := strings.TrimSpace(row[3]); units != "" {
		n, err := strconv.Atoi(units)
		if err != nil {
			return backend.NewProduct{}, fmt.Errorf("unidades_por_quintal: %w", err)
		}
		p.UnitsPerBulk = &n
	}
	return p, nil
}
