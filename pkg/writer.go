package ageing

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Writer exports a result bundle to an HDF5 file: run info and the channel
// map under /Run, per-dataset fit results under /Fits, the ageing trends
// under /Ageing.
type Writer struct {
	File         *hdf5.File
	Filename     string
	RunGroup     *hdf5.Group
	FitsGroup    *hdf5.Group
	AgeingGroup  *hdf5.Group
	RunInfoTable *hdf5.Dataset
	ChannelTable *hdf5.Dataset
	FitTable     *hdf5.Dataset
	AgeingTable  *hdf5.Dataset
	FitCounter   int
	AgeCounter   int
}

func NewWriter(filename string, compression int) (*Writer, error) {
	hdf5.SetStringLength(STRLEN)

	writer := &Writer{Filename: filename}
	fmt.Println("hdf5writer: Creating file: ", filename)
	var err error
	writer.File, err = openFile(filename)
	if err != nil {
		return nil, err
	}
	writer.RunGroup, err = createGroup(writer.File, "Run")
	if err != nil {
		return nil, err
	}
	writer.FitsGroup, err = createGroup(writer.File, "Fits")
	if err != nil {
		return nil, err
	}
	writer.AgeingGroup, err = createGroup(writer.File, "Ageing")
	if err != nil {
		return nil, err
	}
	writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compression)
	if err != nil {
		return nil, err
	}
	writer.ChannelTable, err = createTable(writer.RunGroup, "channels", ChannelMapHDF5{}, compression)
	if err != nil {
		return nil, err
	}
	writer.FitTable, err = createTable(writer.FitsGroup, "fits", FitResultHDF5{}, compression)
	if err != nil {
		return nil, err
	}
	writer.AgeingTable, err = createTable(writer.AgeingGroup, "ageing", AgeingHDF5{}, compression)
	if err != nil {
		return nil, err
	}
	return writer, nil
}

// WriteBundle writes the whole result bundle. Tables must be written as
// preallocated arrays, appends will not work with the HDF5 bindings.
func (w *Writer) WriteBundle(bundle *ResultBundle, runNumber int) error {
	err := writeEntryToTable(w.RunInfoTable, RunInfoHDF5{
		run_number: int32(runNumber),
		n_datasets: int32(len(bundle.Datasets)),
	}, 0)
	if err != nil {
		return err
	}

	channels := make([]ChannelMapHDF5, len(bundle.Records))
	for i, record := range bundle.Records {
		channels[i] = ChannelMapHDF5{
			module:  convertToHdf5String(record.Module),
			channel: convertToHdf5String(record.Channel),
			index:   int32(record.ChannelIndex),
		}
	}
	if err := writeArrayToTable(w.ChannelTable, &channels, 0); err != nil {
		return err
	}

	for di := range bundle.Datasets {
		if err := w.writeFits(&bundle.Datasets[di]); err != nil {
			return err
		}
	}
	for i := range bundle.Records {
		if err := w.writeAgeingRecord(&bundle.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFits(dataset *Dataset) error {
	var rows []FitResultHDF5
	for mi := range dataset.Modules {
		for ci := range dataset.Modules[mi].Channels {
			ch := &dataset.Modules[mi].Channels[ci]
			if ch.Fit == nil {
				continue
			}
			row := FitResultHDF5{
				timestamp: dataset.Time.Unix(),
				channel:   int32(ch.Index),
			}
			if ch.Fit.Valid {
				row.amplitude = ch.Fit.Amplitude
				row.mean = ch.Fit.Mean
				row.sigma = ch.Fit.StdDev
				row.background = ch.Fit.Background
				row.chi2 = ch.Fit.Chi2
				row.valid = 1
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := writeArrayToTable(w.FitTable, &rows, w.FitCounter); err != nil {
		return err
	}
	w.FitCounter += len(rows)
	return nil
}

func (w *Writer) writeAgeingRecord(record *AgeingRecord) error {
	rows := make([]AgeingHDF5, len(record.Points))
	for i, point := range record.Points {
		normalized := int8(0)
		if point.Normalized {
			normalized = 1
		}
		rows[i] = AgeingHDF5{
			timestamp:  point.Time.Unix(),
			channel:    int32(record.ChannelIndex),
			charge:     point.Charge,
			factor:     point.Factor,
			normalized: normalized,
			method:     convertToHdf5String(string(point.Method)),
			stage:      convertToHdf5String(point.Stage.String()),
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := writeArrayToTable(w.AgeingTable, &rows, w.AgeCounter); err != nil {
		return err
	}
	w.AgeCounter += len(rows)
	return nil
}

func (w *Writer) Close() {
	w.RunInfoTable.Close()
	w.ChannelTable.Close()
	w.FitTable.Close()
	w.AgeingTable.Close()
	w.RunGroup.Close()
	w.FitsGroup.Close()
	w.AgeingGroup.Close()
	w.File.Close()
	fmt.Println("hdf5writer: File closed: ", w.Filename)
}
