package ageing

import (
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type RunInfoHDF5 struct {
	run_number int32
	n_datasets int32
}

type ChannelMapHDF5 struct {
	module  [STRLEN]byte
	channel [STRLEN]byte
	index   int32
}

type FitResultHDF5 struct {
	timestamp  int64
	channel    int32
	amplitude  float64
	mean       float64
	sigma      float64
	background float64
	chi2       float64
	valid      int8
}

type AgeingHDF5 struct {
	timestamp  int64
	channel    int32
	charge     float64
	factor     float64
	normalized int8
	method     [STRLEN]byte
	stage      [STRLEN]byte
}

const STRLEN = 20

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compression int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	chunks := []uint{32768}
	plist.SetChunk(chunks)
	plist.SetDeflate(compression)

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, position int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, position)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, position int) error {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}

	// extend
	written := uint(position)
	newsize := []uint{written + length}
	dataset.Resize(newsize)
	filespace := dataset.Space()

	start := []uint{written}
	count := []uint{length}
	filespace.SelectHyperslab(start, nil, count, nil)

	err = dataset.WriteSubset(data, dataspace, filespace)
	if err != nil {
		return err
	}

	dataspace.Close()
	filespace.Close()
	return nil
}
