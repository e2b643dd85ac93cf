package plan

import (
	"github.com/ajitpratap0/strata/internal/codec"
	"github.com/ajitpratap0/strata/internal/transform"
)

func req(name, desc string) Arg { return Arg{Name: name, Required: true, Description: desc} }

func opt(name, def, desc string) Arg { return Arg{Name: name, Default: def, Description: desc} }

func registerBuiltins(r *Registry) {
	registerCodecs(r)
	registerColumnOps(r)
	registerSeriesOps(r)
	registerAggregateOps(r)
}

func registerCodecs(r *Registry) {
	batch := opt("batch_size", "1024", "rows per emitted batch")

	r.MustRegister(Op{
		Name: "codec.text.decode", Kind: KindDecoder,
		Description: "split input into lines as a single _line column",
		Args:        []Arg{batch},
	}, factory("codec.text.decode", codec.NewTextDecoder))
	r.MustRegister(Op{
		Name: "codec.text.encode", Kind: KindEncoder,
		Description: "write _line, or tab-joined string columns, one row per line",
	}, factory("codec.text.encode", noArgs(codec.NewTextEncoder)))

	r.MustRegister(Op{
		Name: "codec.csv.decode", Kind: KindDecoder,
		Description: "parse RFC 4180 CSV with type detection on the first batch",
		Args: []Arg{
			opt("delimiter", ",", "single-byte field separator"),
			opt("header", "true", "first record names the columns"),
			batch,
			opt("repair", "false", "tolerate stray quotes"),
		},
	}, factory("codec.csv.decode", codec.NewCSVDecoder))
	r.MustRegister(Op{
		Name: "codec.csv.encode", Kind: KindEncoder,
		Description: "write RFC 4180 CSV",
		Args: []Arg{
			opt("delimiter", ",", "single-byte field separator"),
			opt("header", "true", "write a header record"),
		},
	}, factory("codec.csv.encode", codec.NewCSVEncoder))

	r.MustRegister(Op{
		Name: "codec.jsonl.decode", Kind: KindDecoder,
		Description: "parse one JSON object per line",
		Args:        []Arg{batch},
	}, factory("codec.jsonl.decode", codec.NewJSONLDecoder))
	r.MustRegister(Op{
		Name: "codec.jsonl.encode", Kind: KindEncoder,
		Description: "write one JSON object per row",
	}, factory("codec.jsonl.encode", noArgs(codec.NewJSONLEncoder)))

	r.MustRegister(Op{
		Name: "codec.table.encode", Kind: KindEncoder,
		Description: "render a Markdown table at end of stream",
		Args: []Arg{
			opt("max_width", "40", "truncate cells wider than this"),
			opt("max_rows", "0", "stop after this many rows, 0 for all"),
		},
	}, factory("codec.table.encode", codec.NewTableEncoder))
	r.MustRegister(Op{
		Name: "codec.arrow.encode", Kind: KindEncoder,
		Description: "write an Arrow IPC stream, one record per batch",
	}, factory("codec.arrow.encode", noArgs(codec.NewArrowEncoder)))
	r.MustRegister(Op{
		Name: "codec.parquet.encode", Kind: KindEncoder,
		Description: "write a Parquet file",
		Args:        []Arg{opt("compression", "snappy", "snappy, gzip, zstd, brotli or none")},
	}, factory("codec.parquet.encode", codec.NewParquetEncoder))
	r.MustRegister(Op{
		Name: "codec.avro.encode", Kind: KindEncoder,
		Description: "write an Avro object container file",
		Args:        []Arg{opt("codec", "null", "null, deflate or snappy")},
	}, factory("codec.avro.encode", codec.NewAvroEncoder))
}

func registerColumnOps(r *Registry) {
	col := req("column", "source column")
	result := func(def string) Arg { return opt("result", def, "output column") }

	r.MustRegister(Op{Name: "select", Kind: KindStep,
		Description: "project and reorder columns",
		Args:        []Arg{req("columns", "column names in output order")},
	}, factory("select", transform.NewSelect))
	r.MustRegister(Op{Name: "reorder", Kind: KindStep,
		Description: "alias of select",
		Args:        []Arg{req("columns", "column names in output order")},
	}, factory("reorder", transform.NewSelect))
	r.MustRegister(Op{Name: "rename", Kind: KindStep,
		Description: "rename columns",
		Args:        []Arg{req("mapping", "old name to new name")},
	}, factory("rename", transform.NewRename))
	r.MustRegister(Op{Name: "trim", Kind: KindStep,
		Description: "strip surrounding whitespace from strings",
		Args:        []Arg{opt("columns", "all string columns", "columns to trim")},
	}, factory("trim", transform.NewTrim))
	r.MustRegister(Op{Name: "clip", Kind: KindStep,
		Description: "clamp numbers into [min, max]",
		Args:        []Arg{col, opt("min", "", "lower bound"), opt("max", "", "upper bound")},
	}, factory("clip", transform.NewClip))
	r.MustRegister(Op{Name: "replace", Kind: KindStep,
		Description: "replace substrings or regex matches; & in a regex replacement is the match",
		Args: []Arg{col, req("pattern", "text or regular expression"),
			req("replacement", "replacement text"), opt("regex", "false", "treat pattern as a regular expression")},
	}, factory("replace", transform.NewReplace))
	r.MustRegister(Op{Name: "split", Kind: KindStep,
		Description: "split a string column into named parts",
		Args:        []Arg{col, opt("delimiter", " ", "separator"), req("names", "output column names")},
	}, factory("split", transform.NewSplit))
	r.MustRegister(Op{Name: "explode", Kind: KindStep,
		Description: "emit one row per delimited token",
		Args:        []Arg{col, opt("delimiter", ",", "separator")},
	}, factory("explode", transform.NewExplode))
	r.MustRegister(Op{Name: "bin", Kind: KindStep,
		Description: "label numbers with their interval as <column>_bin",
		Args:        []Arg{col, req("boundaries", "increasing boundaries")},
	}, factory("bin", transform.NewBin))
	r.MustRegister(Op{Name: "filter", Kind: KindStep,
		Description: "keep rows where the expression holds",
		Args:        []Arg{req("expr", "row expression")},
	}, factory("filter", transform.NewFilter))
	r.MustRegister(Op{Name: "validate", Kind: KindStep,
		Description: "append a bool _valid column",
		Args:        []Arg{req("expr", "row expression")},
	}, factory("validate", transform.NewValidate))
	r.MustRegister(Op{Name: "grep", Kind: KindStep,
		Description: "keep rows whose string column matches",
		Args: []Arg{req("pattern", "substring or regular expression"), opt("column", "_line", "column to search"),
			opt("invert", "false", "keep non-matching rows"), opt("regex", "false", "treat pattern as a regular expression")},
	}, factory("grep", transform.NewGrep))
	r.MustRegister(Op{Name: "head", Kind: KindStep,
		Description: "pass the first n rows",
		Args:        []Arg{req("n", "row count")},
	}, factory("head", transform.NewHead))
	r.MustRegister(Op{Name: "skip", Kind: KindStep,
		Description: "drop the first n rows",
		Args:        []Arg{req("n", "row count")},
	}, factory("skip", transform.NewSkip))

	r.MustRegister(Op{Name: "label-encode", Kind: KindStep,
		Description: "map values to dense int codes in first-seen order",
		Args:        []Arg{col, result("<column>_encoded")},
	}, factory("label-encode", transform.NewLabelEncode))
	r.MustRegister(Op{Name: "onehot", Kind: KindStep,
		Description: "append one indicator column per category",
		Args:        []Arg{col, opt("drop", "false", "drop the source column")},
	}, factory("onehot", transform.NewOneHot))
	r.MustRegister(Op{Name: "split-data", Kind: KindStep,
		Description: "label rows train or test",
		Args:        []Arg{opt("ratio", "0.8", "share of train rows"), opt("seed", "42", "hash seed"), result("_split")},
	}, factory("split-data", transform.NewSplitData))
	r.MustRegister(Op{Name: "hash", Kind: KindStep,
		Description: "append the xxHash64 of the key columns",
		Args:        []Arg{opt("columns", "all", "key columns"), result("_hash")},
	}, factory("hash", transform.NewHash))
	r.MustRegister(Op{Name: "unique", Kind: KindStep,
		Description: "drop rows whose key was seen before",
		Args:        []Arg{opt("columns", "all", "key columns")},
	}, factory("unique", transform.NewUnique))
	r.MustRegister(Op{Name: "dedup", Kind: KindStep,
		Description: "alias of unique",
		Args:        []Arg{opt("columns", "all", "key columns")},
	}, factory("dedup", transform.NewUnique))
	r.MustRegister(Op{Name: "fill-null", Kind: KindStep,
		Description: "replace nulls with per-column defaults",
		Args:        []Arg{req("mapping", "column to default value")},
	}, factory("fill-null", transform.NewFillNull))
	r.MustRegister(Op{Name: "fill-down", Kind: KindStep,
		Description: "replace nulls with the previous value",
		Args:        []Arg{opt("columns", "all", "columns to fill")},
	}, factory("fill-down", transform.NewFillDown))
	r.MustRegister(Op{Name: "cast", Kind: KindStep,
		Description: "convert column types",
		Args:        []Arg{req("mapping", "column to int, float, string, bool, date or timestamp")},
	}, factory("cast", transform.NewCast))
	r.MustRegister(Op{Name: "derive", Kind: KindStep,
		Description: "append computed columns",
		Args:        []Arg{req("columns", "list of {name, expr}")},
	}, factory("derive", transform.NewDerive))
	r.MustRegister(Op{Name: "datetime", Kind: KindStep,
		Description: "extract date and time components",
		Args:        []Arg{col, opt("extract", "year,month,day", "components to extract")},
	}, factory("datetime", transform.NewDateTime))
	r.MustRegister(Op{Name: "date-trunc", Kind: KindStep,
		Description: "truncate dates and timestamps",
		Args:        []Arg{col, req("trunc", "year, month, day, hour, minute or second"), result("<column>")},
	}, factory("date-trunc", transform.NewDateTrunc))
}

func registerSeriesOps(r *Registry) {
	col := req("column", "source column")
	result := func(def string) Arg { return opt("result", def, "output column") }

	r.MustRegister(Op{Name: "step", Kind: KindStep,
		Description: "running aggregates and deltas",
		Args: []Arg{col, req("func", "running-sum, running-avg, running-min, running-max, running-count, delta, lag or ratio"),
			result("<column>_<func>")},
	}, factory("step", transform.NewRunning))
	r.MustRegister(Op{Name: "ewma", Kind: KindStep,
		Description: "exponentially weighted moving average",
		Args:        []Arg{col, req("alpha", "smoothing factor in (0, 1]"), result("<column>_ewma")},
	}, factory("ewma", transform.NewEWMA))
	r.MustRegister(Op{Name: "diff", Kind: KindStep,
		Description: "k-th order difference",
		Args:        []Arg{col, opt("order", "1", "order between 1 and 8"), result("<column>_diff")},
	}, factory("diff", transform.NewDiff))
	r.MustRegister(Op{Name: "anomaly", Kind: KindStep,
		Description: "flag values far from the running mean",
		Args:        []Arg{col, opt("threshold", "3", "z-score threshold"), result("<column>_anomaly")},
	}, factory("anomaly", transform.NewAnomaly))
	r.MustRegister(Op{Name: "window", Kind: KindStep,
		Description: "sliding window aggregate over the last size values",
		Args: []Arg{col, req("size", "window length"), req("func", "avg, sum, min, max or count"),
			result("<column>_<func><size>")},
	}, factory("window", transform.NewWindow))
	r.MustRegister(Op{Name: "lead", Kind: KindStep,
		Description: "attach the value offset rows ahead",
		Args:        []Arg{col, opt("offset", "1", "rows ahead"), result("<column>_lead")},
	}, factory("lead", transform.NewLead))
	r.MustRegister(Op{Name: "interpolate", Kind: KindStep,
		Description: "fill nulls in a numeric column",
		Args:        []Arg{col, opt("method", "linear", "linear, forward or backward")},
	}, factory("interpolate", transform.NewInterpolate))
}

func registerAggregateOps(r *Registry) {
	r.MustRegister(Op{Name: "sample", Kind: KindStep,
		Description: "uniform reservoir sample",
		Args:        []Arg{req("n", "sample size"), opt("seed", "clock", "random seed")},
	}, factory("sample", transform.NewSample))
	r.MustRegister(Op{Name: "tail", Kind: KindStep,
		Description: "keep the last n rows",
		Args:        []Arg{req("n", "row count")},
	}, factory("tail", transform.NewTail))
	r.MustRegister(Op{Name: "top", Kind: KindStep,
		Description: "keep the n best rows by one column",
		Args:        []Arg{req("n", "row count"), req("column", "ranking column"), opt("desc", "true", "highest first")},
	}, factory("top", transform.NewTop))
	r.MustRegister(Op{Name: "sort", Kind: KindStep,
		Description: "stable sort with nulls last",
		Args:        []Arg{req("columns", "list of {name, desc}")},
	}, factory("sort", transform.NewSort))
	r.MustRegister(Op{Name: "normalize", Kind: KindStep,
		Description: "rescale numeric columns",
		Args:        []Arg{req("columns", "columns to rescale"), opt("method", "minmax", "minmax or zscore")},
	}, factory("normalize", transform.NewNormalize))
	r.MustRegister(Op{Name: "acf", Kind: KindStep,
		Description: "autocorrelation table",
		Args:        []Arg{req("column", "numeric column"), opt("lags", "20", "largest lag")},
	}, factory("acf", transform.NewACF))
	r.MustRegister(Op{Name: "stats", Kind: KindStep,
		Description: "per-column summary statistics",
		Args:        []Arg{opt("stats", "count,sum,avg,min,max,var,stddev,median", "measures; also p25, p75, skewness, kurtosis, distinct, hist, sample")},
	}, factory("stats", transform.NewStats))
	r.MustRegister(Op{Name: "frequency", Kind: KindStep,
		Description: "value counts by descending frequency",
		Args:        []Arg{opt("columns", "all", "columns to count together")},
	}, factory("frequency", transform.NewFrequency))
	r.MustRegister(Op{Name: "group-agg", Kind: KindStep,
		Description: "grouped aggregates",
		Args:        []Arg{opt("group_by", "", "key columns"), req("aggs", "list of {column, func, name}")},
	}, factory("group-agg", transform.NewGroupAgg))
	r.MustRegister(Op{Name: "pivot", Kind: KindStep,
		Description: "long to wide",
		Args: []Arg{req("name_column", "column holding new column names"), req("value_column", "column holding values"),
			opt("agg", "first", "first, sum, count, avg, min or max")},
	}, factory("pivot", transform.NewPivot))
	r.MustRegister(Op{Name: "unpivot", Kind: KindStep,
		Description: "wide to long as variable/value pairs",
		Args:        []Arg{req("columns", "columns to melt")},
	}, factory("unpivot", transform.NewUnpivot))
	r.MustRegister(Op{Name: "stack", Kind: KindStep,
		Description: "append the rows of a CSV file at end of stream",
		Args:        []Arg{req("file", "CSV path"), opt("tag", "", "source column to add"), opt("tag_value", "<file>", "tag for file rows")},
	}, factory("stack", transform.NewStack))
	r.MustRegister(Op{Name: "join", Kind: KindStep,
		Description: "hash join against a CSV lookup file",
		Args: []Arg{req("file", "CSV path"), req("on", "key or left=right"),
			opt("how", "inner", "inner or left")},
	}, factory("join", transform.NewJoin))
}
