package tag

// Item and delimiter tags. They appear only inside sequences and encapsulated
// pixel data and never carry a VR.
var (
	Item                     = Tag{Group: 0xFFFE, Element: 0xE000}
	ItemDelimitationItem     = Tag{Group: 0xFFFE, Element: 0xE00D}
	SequenceDelimitationItem = Tag{Group: 0xFFFE, Element: 0xE0DD}
)

// File meta information group. P3.10 7.1.
var (
	FileMetaInformationGroupLength = Tag{Group: 0x0002, Element: 0x0000}
	FileMetaInformationVersion     = Tag{Group: 0x0002, Element: 0x0001}
	MediaStorageSOPClassUID        = Tag{Group: 0x0002, Element: 0x0002}
	MediaStorageSOPInstanceUID     = Tag{Group: 0x0002, Element: 0x0003}
	TransferSyntaxUID              = Tag{Group: 0x0002, Element: 0x0010}
	ImplementationClassUID         = Tag{Group: 0x0002, Element: 0x0012}
	ImplementationVersionName      = Tag{Group: 0x0002, Element: 0x0013}
	SourceApplicationEntityTitle   = Tag{Group: 0x0002, Element: 0x0016}
)

// Frequently used data set attributes.
var (
	SpecificCharacterSet    = Tag{Group: 0x0008, Element: 0x0005}
	SOPClassUID             = Tag{Group: 0x0008, Element: 0x0016}
	SOPInstanceUID          = Tag{Group: 0x0008, Element: 0x0018}
	StudyDate               = Tag{Group: 0x0008, Element: 0x0020}
	QueryRetrieveLevel      = Tag{Group: 0x0008, Element: 0x0052}
	Modality                = Tag{Group: 0x0008, Element: 0x0060}
	ReferencedImageSequence = Tag{Group: 0x0008, Element: 0x1140}
	PatientName             = Tag{Group: 0x0010, Element: 0x0010}
	PatientID               = Tag{Group: 0x0010, Element: 0x0020}
	PatientBirthDate        = Tag{Group: 0x0010, Element: 0x0030}
	StudyInstanceUID        = Tag{Group: 0x0020, Element: 0x000D}
	SeriesInstanceUID       = Tag{Group: 0x0020, Element: 0x000E}
	InstanceNumber          = Tag{Group: 0x0020, Element: 0x0013}
	Rows                    = Tag{Group: 0x0028, Element: 0x0010}
	Columns                 = Tag{Group: 0x0028, Element: 0x0011}
	PixelData               = Tag{Group: 0x7FE0, Element: 0x0010}
)
