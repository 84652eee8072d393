package storage

const schemaSQL = `
-- One row per invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    source TEXT NOT NULL,
    url_count INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    complete_count INTEGER,
    partial_count INTEGER,
    failed_count INTEGER
);

-- Product records; NULL marks a field that could not be extracted
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    url TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('complete', 'partial', 'failed')),
    sku TEXT,
    title TEXT,
    description TEXT,
    upc TEXT,
    image_paths TEXT,
    failure_reason TEXT,
    scraped_at DATETIME NOT NULL,
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku) WHERE sku IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_products_status ON products(run_id, status);

-- Mirrors the error log; field is NULL for whole-page failures
CREATE TABLE IF NOT EXISTS scrape_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    url TEXT NOT NULL,
    field TEXT,
    message TEXT NOT NULL,
    occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_errors_url ON scrape_errors(url);

`
