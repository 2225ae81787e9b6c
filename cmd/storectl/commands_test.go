package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/seed"
)

type stubSeeder struct {
	applied *seed.File
}

func (s *stubSeeder) Apply(_ context.Context, f *seed.File) (seed.Summary, error) {
	s.applied = f
	return seed.Summary{Created: len(f.Products)}, nil
}

type stubReconciler struct {
	summary checkout.ReconcileSummary
	err     error
}

func (s stubReconciler) RunOnce(context.Context) (checkout.ReconcileSummary, error) {
	return s.summary, s.err
}

type stubSitemaps struct{}

func (stubSitemaps) Products(context.Context) ([]byte, error) {
	return []byte("<urlset>products</urlset>"), nil
}

func (stubSitemaps) Blog(context.Context) ([]byte, error) {
	return []byte("<urlset>blog</urlset>"), nil
}

func noop() {}

func testRuntime(s *stubSeeder, rec stubReconciler) runtime {
	return runtime{
		seeder: func(context.Context) (seeder, func(), error) {
			return s, noop, nil
		},
		reconciler: func(context.Context) (reconciler, func(), error) {
			return rec, noop, nil
		},
		sitemaps: func(context.Context) (sitemapBuilder, func(), error) {
			return stubSitemaps{}, noop, nil
		},
	}
}

func execute(t *testing.T, rt runtime, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd(rt)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSeedFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSeedCommandAppliesFile(t *testing.T) {
	s := &stubSeeder{}
	path := writeSeedFile(t, "products:\n  - name: Pulse\n    price: \"9.99\"\n")

	out, err := execute(t, testRuntime(s, stubReconciler{}), "seed", "--file", path)
	require.NoError(t, err)
	require.NotNil(t, s.applied)
	require.Len(t, s.applied.Products, 1)
	require.Contains(t, out, `"products_created": 1`)
}

func TestSeedCommandDryRunSkipsWrites(t *testing.T) {
	s := &stubSeeder{}
	path := writeSeedFile(t, "faq:\n  - question: Q\n    answer: A\n")

	out, err := execute(t, testRuntime(s, stubReconciler{}), "seed", "-f", path, "--dry-run")
	require.NoError(t, err)
	require.Nil(t, s.applied)
	require.Contains(t, out, "1 faqs")
}

func TestSeedCommandRequiresFile(t *testing.T) {
	_, err := execute(t, testRuntime(&stubSeeder{}, stubReconciler{}), "seed")
	require.Error(t, err)
}

func TestReconcileCommandPrintsSummary(t *testing.T) {
	rec := stubReconciler{summary: checkout.ReconcileSummary{Scanned: 3, Paid: 2, Reconciled: 1}}

	out, err := execute(t, testRuntime(&stubSeeder{}, rec), "reconcile")
	require.NoError(t, err)
	require.Contains(t, out, `"scanned": 3`)
	require.Contains(t, out, `"paid": 2`)
}

func TestReconcileCommandReportsPartialFailure(t *testing.T) {
	rec := stubReconciler{
		summary: checkout.ReconcileSummary{Scanned: 2, Failed: 1},
		err:     errors.New("lookup failed"),
	}

	out, err := execute(t, testRuntime(&stubSeeder{}, rec), "reconcile")
	require.ErrorContains(t, err, "lookup failed")
	require.Contains(t, out, `"failed": 1`)
}

func TestSitemapCommand(t *testing.T) {
	rt := testRuntime(&stubSeeder{}, stubReconciler{})

	out, err := execute(t, rt, "sitemap", "products")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "<urlset>products"))

	out, err = execute(t, rt, "sitemap", "blog")
	require.NoError(t, err)
	require.Contains(t, out, "blog")

	_, err = execute(t, rt, "sitemap", "pages")
	require.Error(t, err)
}
