// Package mlwiz explores tabular datasets and finds a baseline model for a
// target column.
//
// mlwiz loads CSV, TSV, XLSX and XLS files, drops incomplete rows, decides
// whether the target poses a classification or a regression problem, and
// trains a small set of candidate models on an 80/20 split, reporting the
// score of each and the best one.
//
// # Installation
//
//	go install github.com/YuminosukeSato/mlwiz/cmd/mlwiz@latest
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/YuminosukeSato/mlwiz/automl"
//	    "github.com/YuminosukeSato/mlwiz/dataset"
//	    "github.com/YuminosukeSato/mlwiz/report"
//	)
//
//	func main() {
//	    ds, err := dataset.LoadFile("iris.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    rep, err := automl.NewPipeline().Run(context.Background(), ds, "species")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    report.Evaluation(os.Stdout, rep)
//	}
//
// # Packages
//
//   - dataset: loading, cleaning, splitting, describe and correlation
//   - automl: problem type detection, candidate evaluation, best-model selection
//   - sklearn/linear_model: LinearRegression, LogisticRegression
//   - sklearn/tree: DecisionTreeClassifier, DecisionTreeRegressor
//   - sklearn/ensemble: RandomForestClassifier, RandomForestRegressor
//   - metrics: accuracy, MSE, R² and friends
//   - preprocessing: StandardScaler, LabelEncoder
//   - viz: histograms, scatter and pair plots, correlation heat maps
//   - report: text tables for the CLI
//   - server: HTTP API with Prometheus metrics
//   - config: defaults, config file and MLWIZ_* environment variables
//   - core/model: estimator interfaces, fitted state and input validation
//   - core/parallel: bounded worker helpers
//   - pkg/errors, pkg/log: structured errors and logging
//
// # Command Line
//
//	mlwiz preview iris.csv
//	mlwiz describe iris.csv
//	mlwiz plot iris.csv --kind bivariate --columns sepal_length,petal_length --out scatter.png
//	mlwiz evaluate iris.csv --target species
//	mlwiz serve --addr :8080
package mlwiz
