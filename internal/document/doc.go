// Package document provides page-level text access for source documents.
//
// Three layers cooperate:
//   - PDFReader extracts native text and word bounding boxes from a PDF's
//     text layer using github.com/ledongthuc/pdf.
//   - OCRClient talks to the external OCR service for pages without a usable
//     text layer. Rasterization and recognition are the service's job; this
//     package only carries the request/response contract.
//   - Provider selects between the two automatically per page, consulting the
//     persistent page store first so a document is only ever OCRed once.
//
// All page numbers in this package are 1-based and local to the document.
package document
